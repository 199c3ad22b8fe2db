// Package ingest parses raw git log output into ordered commit records.
//
// One corrupt log entry must never prevent extraction of the rest of
// history: malformed records degrade to best-effort partial records
// carrying a diagnostic reason instead of aborting the sequence.
package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devstats/devstats-go/internal/git"
	"github.com/devstats/devstats-go/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	numstatRe = regexp.MustCompile(`^(\d+|-)\t(\d+|-)\t(.+)$`)
	// rename paths collapse to "prefix{old => new}suffix"
	renameRe   = regexp.MustCompile(`^(.*)\{(.*) => (.*)\}(.*)$`)
	fullShaRe  = regexp.MustCompile(`^[0-9a-f]{40}$`)
	shortShaRe = regexp.MustCompile(`^[0-9a-f]{7,12}$`)
)

// Options select the slice of history to harvest.
type Options struct {
	Ref      string
	MaxDepth int // 0 = unlimited
	Since    string
	Until    string
	Author   string
}

// Harvester is the commit ingestor. It pulls raw text through the
// injected repository transport and parses it; it issues no queries of
// its own beyond the single log read.
type Harvester struct {
	repo   *git.Repo
	logger *logrus.Logger
}

// NewHarvester creates a harvester over the given repository.
func NewHarvester(repo *git.Repo, logger *logrus.Logger) *Harvester {
	return &Harvester{repo: repo, logger: logger}
}

// Harvest reads and parses commit history. A transport failure here is
// fatal to the run; parse failures on individual records are not.
func (h *Harvester) Harvest(ctx context.Context, opts Options) ([]models.CommitRecord, error) {
	raw, err := h.repo.Log(ctx, git.LogOptions{
		Ref:      opts.Ref,
		MaxCount: opts.MaxDepth,
		Since:    opts.Since,
		Until:    opts.Until,
		Author:   opts.Author,
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	records := Parse(raw)
	if h.logger != nil {
		partial := 0
		for _, r := range records {
			if r.Partial {
				partial++
			}
		}
		h.logger.WithFields(logrus.Fields{
			"commits": len(records),
			"partial": partial,
		}).Info("history harvested")
	}
	return records, nil
}

// Parse converts raw record-separated log output into commit records,
// preserving input order. Exported separately so tests and offline
// consumers can feed canned transcripts.
func Parse(raw string) []models.CommitRecord {
	var records []models.CommitRecord
	for _, chunk := range strings.Split(raw, git.RecordSep) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		records = append(records, parseChunk(chunk))
	}
	return records
}

// parseChunk parses one commit's text: a field line followed by numstat
// lines. Anything unparseable marks the record partial.
func parseChunk(chunk string) models.CommitRecord {
	// the body field may itself contain newlines; numstat lines are
	// recognized by shape, so scan line-wise after the field split
	parts := strings.SplitN(chunk, git.FieldSep, 11)
	rec := models.CommitRecord{}

	if len(parts) < 11 {
		rec.Partial = true
		rec.PartialReason = fmt.Sprintf("truncated record: %d of 11 fields", len(parts))
		if len(parts) > 0 {
			rec.SHA = strings.TrimSpace(strings.SplitN(parts[0], "\n", 2)[0])
		}
		return rec
	}

	rec.SHA = strings.TrimSpace(parts[0])
	rec.AbbrevSHA = strings.TrimSpace(parts[1])
	if parents := strings.Fields(parts[2]); len(parents) > 0 {
		rec.ParentSHAs = parents
	}
	rec.Author = models.Identity{Name: parts[3], Email: parts[4]}
	rec.Committer = models.Identity{Name: parts[6], Email: parts[7]}
	rec.Subject = strings.TrimSpace(parts[9])

	if !fullShaRe.MatchString(rec.SHA) {
		rec.Partial = true
		rec.PartialReason = "malformed commit hash"
	}
	if rec.AbbrevSHA != "" && !shortShaRe.MatchString(rec.AbbrevSHA) {
		rec.Partial = true
		rec.PartialReason = "malformed abbreviated hash"
	}

	var ok bool
	if rec.AuthoredAt, ok = parseISO(parts[5]); !ok {
		rec.Partial = true
		rec.PartialReason = "unparseable author date"
	}
	if rec.CommittedAt, ok = parseISO(parts[8]); !ok {
		rec.Partial = true
		rec.PartialReason = "unparseable committer date"
	}

	// the final field holds the body followed by the numstat block
	body, stats := splitBodyAndStats(parts[10])
	rec.Body = body

	for _, line := range stats {
		fc, ok := parseNumstatLine(line)
		if !ok {
			rec.Partial = true
			rec.PartialReason = "truncated stat line"
			continue
		}
		rec.Files = append(rec.Files, fc)
		rec.Insertions += fc.Insertions
		rec.Deletions += fc.Deletions
	}
	return rec
}

// splitBodyAndStats separates free-form body text from trailing numstat
// lines. A numstat line is recognized by its added<TAB>deleted<TAB>path
// shape, which body text produced by humans does not match.
func splitBodyAndStats(tail string) (string, []string) {
	lines := strings.Split(tail, "\n")
	var bodyLines, statLines []string
	inStats := false
	for _, line := range lines {
		if numstatRe.MatchString(line) {
			inStats = true
			statLines = append(statLines, line)
			continue
		}
		if inStats && strings.TrimSpace(line) == "" {
			continue
		}
		if !inStats {
			bodyLines = append(bodyLines, line)
		} else if strings.TrimSpace(line) != "" {
			// malformed stat line inside the stat block
			statLines = append(statLines, line)
		}
	}
	return strings.TrimSpace(strings.Join(bodyLines, "\n")), statLines
}

// parseNumstatLine parses "added<TAB>deleted<TAB>path". Binary files
// report "-" counts and parse as zero churn.
func parseNumstatLine(line string) (models.FileChange, bool) {
	m := numstatRe.FindStringSubmatch(line)
	if m == nil {
		return models.FileChange{}, false
	}

	added, deleted := 0, 0
	if m[1] != "-" {
		added, _ = strconv.Atoi(m[1])
	}
	if m[2] != "-" {
		deleted, _ = strconv.Atoi(m[2])
	}

	fc := models.FileChange{Insertions: added, Deletions: deleted}
	rawPath := m[3]

	if rm := renameRe.FindStringSubmatch(rawPath); rm != nil {
		fc.Path = rm[1] + rm[3] + rm[4]
		fc.OldPath = rm[1] + rm[2] + rm[4]
		fc.Kind = models.ChangeRenamed
	} else if idx := strings.Index(rawPath, " => "); idx >= 0 {
		fc.OldPath = rawPath[:idx]
		fc.Path = rawPath[idx+4:]
		fc.Kind = models.ChangeRenamed
	} else {
		fc.Path = rawPath
		switch {
		case added > 0 && deleted == 0:
			fc.Kind = models.ChangeAdded
		case added == 0 && deleted > 0:
			fc.Kind = models.ChangeDeleted
		default:
			fc.Kind = models.ChangeModified
		}
	}
	return fc, true
}

func parseISO(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Unix(0, 0).UTC(), false
	}
	return t, true
}
