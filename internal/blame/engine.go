// Package blame derives line ownership, per-author fractions, and bus
// factor from git blame output.
package blame

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/devstats/devstats-go/internal/cache"
	"github.com/devstats/devstats-go/internal/git"
	"github.com/devstats/devstats-go/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	headerRe      = regexp.MustCompile(`^([0-9a-f]{40}) (\d+) (\d+)(?: (\d+))?$`)
	authorRe      = regexp.MustCompile(`^author (.*)$`)
	authorMailRe  = regexp.MustCompile(`^author-mail <(.*)>$`)
	committerTsRe = regexp.MustCompile(`^committer-time (\d+)$`)
)

// Config tunes the blame engine.
type Config struct {
	// BusFactorCoverage is the ownership share the smallest author set
	// must reach, default 0.8.
	BusFactorCoverage float64
	// FollowRenames enables move and copy detection in blame.
	FollowRenames bool
	// KeepLines retains per-line attribution in reports. Off by default
	// to bound memory on large files.
	KeepLines bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{BusFactorCoverage: 0.8, FollowRenames: true}
}

// Engine computes file ownership reports. Binary and untracked files
// yield not-blameable reports rather than errors.
type Engine struct {
	repo   *git.Repo
	cfg    Config
	store  *cache.Store
	logger *logrus.Logger
}

// NewEngine creates a blame engine.
func NewEngine(repo *git.Repo, cfg Config, logger *logrus.Logger) *Engine {
	if cfg.BusFactorCoverage <= 0 || cfg.BusFactorCoverage > 1 {
		cfg.BusFactorCoverage = 0.8
	}
	return &Engine{repo: repo, cfg: cfg, logger: logger}
}

// WithStore attaches a persistent cache. Reports are reused across runs
// as long as HEAD has not moved.
func (e *Engine) WithStore(store *cache.Store) *Engine {
	e.store = store
	return e
}

// BlameFile produces the ownership report for one file at HEAD.
func (e *Engine) BlameFile(ctx context.Context, path string) (models.FileBlameReport, error) {
	report := models.FileBlameReport{Path: path}

	if binary, err := e.repo.IsBinary(ctx, path); err == nil && binary {
		report.NotBlameable = true
		report.Reason = "binary file"
		return report, nil
	}

	raw, err := e.repo.BlamePorcelain(ctx, path, e.cfg.FollowRenames)
	if err != nil {
		// missing or unreadable files degrade, transport-level failures
		// (timeout, no git) propagate
		if ctx.Err() != nil {
			return report, fmt.Errorf("blame %s: %w", path, err)
		}
		report.NotBlameable = true
		report.Reason = "blame failed: " + firstLine(err.Error())
		return report, nil
	}

	lines := parsePorcelain(raw)
	if len(lines) == 0 {
		report.NotBlameable = true
		report.Reason = "empty file"
		return report, nil
	}

	report.TotalLines = len(lines)
	if e.cfg.KeepLines {
		report.Lines = lines
	}
	report.Authors = aggregate(lines)
	report.BusFactor = busFactor(report.Authors, e.cfg.BusFactorCoverage)
	return report, nil
}

// BlameAll blames every tracked file, skipping files that cannot be
// blamed. The per-file order of the returned reports follows ls-files.
// With a store attached, unchanged files are served from cache.
func (e *Engine) BlameAll(ctx context.Context) ([]models.FileBlameReport, error) {
	files, err := e.repo.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked files: %w", err)
	}

	head := ""
	if e.store != nil {
		if head, err = e.repo.HeadSHA(ctx); err != nil {
			head = ""
		}
	}

	reports := make([]models.FileBlameReport, 0, len(files))
	for _, f := range files {
		if e.store != nil && head != "" {
			var cached models.FileBlameReport
			if hit, _ := e.store.GetBlame(f, head, &cached); hit {
				reports = append(reports, cached)
				continue
			}
		}
		r, berr := e.BlameFile(ctx, f)
		if berr != nil {
			return reports, berr
		}
		if e.store != nil && head != "" {
			if perr := e.store.PutBlame(f, head, r); perr != nil && e.logger != nil {
				e.logger.WithField("file", f).Debug("blame cache write failed")
			}
		}
		if r.NotBlameable && e.logger != nil {
			e.logger.WithFields(logrus.Fields{"file": f, "reason": r.Reason}).Debug("file not blameable")
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// parsePorcelain walks --line-porcelain output. Each line group starts
// with a commit header and carries full metadata; the content line
// itself is tab-prefixed.
func parsePorcelain(raw string) []models.BlameLine {
	var result []models.BlameLine
	var current models.BlameLine
	// commit metadata repeats per line in line-porcelain mode, so no
	// sha -> identity table is needed
	haveHeader := false

	for _, line := range strings.Split(raw, "\n") {
		if m := headerRe.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[3])
			current = models.BlameLine{SHA: m[1], LineNumber: lineNo}
			haveHeader = true
			continue
		}
		if !haveHeader {
			continue
		}
		if m := authorRe.FindStringSubmatch(line); m != nil {
			current.Author.Name = m[1]
			continue
		}
		if m := authorMailRe.FindStringSubmatch(line); m != nil {
			current.Author.Email = m[1]
			continue
		}
		if m := committerTsRe.FindStringSubmatch(line); m != nil {
			if ts, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				current.CommittedAt = time.Unix(ts, 0).UTC()
			}
			continue
		}
		if strings.HasPrefix(line, "\t") {
			result = append(result, current)
			haveHeader = false
		}
	}
	return result
}

// aggregate folds per-line attribution into per-author stats, keyed by
// email. Fractions are computed against the total so they sum to 1.0.
func aggregate(lines []models.BlameLine) []models.AuthorBlameStat {
	counts := make(map[string]*models.AuthorBlameStat)
	for _, l := range lines {
		key := l.Author.Email
		if s, ok := counts[key]; ok {
			s.Lines++
		} else {
			counts[key] = &models.AuthorBlameStat{Author: l.Author, Lines: 1}
		}
	}

	stats := make([]models.AuthorBlameStat, 0, len(counts))
	total := float64(len(lines))
	for _, s := range counts {
		s.Ownership = float64(s.Lines) / total
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Lines != stats[j].Lines {
			return stats[i].Lines > stats[j].Lines
		}
		return stats[i].Author.Email < stats[j].Author.Email
	})
	return stats
}

// busFactor is the size of the smallest author set whose combined
// ownership reaches the coverage threshold. Authors are taken largest
// first; an empty file has bus factor 0.
func busFactor(stats []models.AuthorBlameStat, coverage float64) int {
	covered := 0.0
	for i, s := range stats {
		covered += s.Ownership
		if covered >= coverage {
			return i + 1
		}
	}
	return len(stats)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
