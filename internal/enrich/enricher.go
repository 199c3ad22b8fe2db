// Package enrich derives cross-commit classification fields from an
// ingested commit sequence.
package enrich

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/devstats/devstats-go/internal/models"
)

var (
	conventionalRe = regexp.MustCompile(`^(\w+)(?:\([^)]*\))?!?:\s`)
	wipRe          = regexp.MustCompile(`(?i)^(?:wip|work.in.progress)\b`)
	fixupRe        = regexp.MustCompile(`^(?:fixup|squash)!\s`)
	revertRe       = regexp.MustCompile(`(?i)^Revert\s+"?`)
	revertSubjRe   = regexp.MustCompile(`^Revert\s+"(.+)"\s*$`)
	revertShaRe    = regexp.MustCompile(`(?m)^This reverts commit ([0-9a-f]{7,40})`)
)

// conventionalTypes is the fixed set of recognized commit types. Other
// prefixes yield no type rather than an error.
var conventionalTypes = map[string]bool{
	"feat": true, "fix": true, "chore": true, "docs": true,
	"style": true, "refactor": true, "perf": true, "test": true,
	"build": true, "ci": true, "revert": true,
}

// SizeThresholds are the churn boundaries between size categories.
// A commit is tiny below Tiny, massive at Large and above.
type SizeThresholds struct {
	Tiny   int // default 10
	Small  int // default 50
	Medium int // default 200
	Large  int // default 500
}

// DefaultSizeThresholds returns the documented defaults.
func DefaultSizeThresholds() SizeThresholds {
	return SizeThresholds{Tiny: 10, Small: 50, Medium: 200, Large: 500}
}

// Enricher computes derived commit fields. Enrichment is a pure function
// of the whole sequence: revert linkage and streak membership depend on
// commits before and after a given record.
type Enricher struct {
	sizes    SizeThresholds
	location *time.Location
}

// NewEnricher creates an enricher with the given size thresholds and the
// timezone used for calendar-day grouping.
func NewEnricher(sizes SizeThresholds, loc *time.Location) *Enricher {
	if loc == nil {
		loc = time.UTC
	}
	return &Enricher{sizes: sizes, location: loc}
}

// Enrich classifies every commit. Input order is preserved. Malformed
// subjects degrade that commit's derived fields to defaults; Enrich
// never fails.
func (e *Enricher) Enrich(commits []models.CommitRecord) []models.EnrichedCommit {
	enriched := make([]models.EnrichedCommit, len(commits))
	for i, c := range commits {
		enriched[i] = e.enrichOne(c)
	}
	e.linkReverts(enriched)
	e.assignStreaks(enriched)
	e.rankPercentiles(enriched)
	return enriched
}

func (e *Enricher) enrichOne(c models.CommitRecord) models.EnrichedCommit {
	ec := models.EnrichedCommit{CommitRecord: c, Size: e.classifySize(c.Churn())}
	subject := c.Subject

	ec.IsFixup = fixupRe.MatchString(subject)
	ec.IsWIP = wipRe.MatchString(subject)
	ec.IsRevert = revertRe.MatchString(subject)

	if m := conventionalRe.FindStringSubmatch(subject); m != nil && conventionalTypes[strings.ToLower(m[1])] {
		ec.ConventionalType = strings.ToLower(m[1])
	}
	return ec
}

func (e *Enricher) classifySize(churn int) models.SizeCategory {
	switch {
	case churn < e.sizes.Tiny:
		return models.SizeTiny
	case churn < e.sizes.Small:
		return models.SizeSmall
	case churn < e.sizes.Medium:
		return models.SizeMedium
	case churn < e.sizes.Large:
		return models.SizeLarge
	default:
		return models.SizeMassive
	}
}

// linkReverts resolves revert references. A revert subject embeds the
// original subject; the body may carry the original hash. When the
// reference resolves to a commit in the sequence, that commit learns it
// was reverted and the revert learns what it reverts.
func (e *Enricher) linkReverts(enriched []models.EnrichedCommit) {
	bySubject := make(map[string][]int)
	bySHA := make(map[string]int)
	byAbbrevPrefix := make([]int, 0)
	for i, ec := range enriched {
		bySubject[ec.Subject] = append(bySubject[ec.Subject], i)
		if ec.SHA != "" {
			bySHA[ec.SHA] = i
		}
		byAbbrevPrefix = append(byAbbrevPrefix, i)
	}

	// input is reverse-chronological: a revert at index i targets a
	// commit at index > i
	for i := range enriched {
		ec := &enriched[i]
		if !ec.IsRevert {
			continue
		}

		target := -1
		if m := revertShaRe.FindStringSubmatch(ec.Body); m != nil {
			// the reference must name an earlier commit, which in
			// reverse-chronological order sits at a later index
			if j := resolveSHA(m[1], enriched, bySHA); j > i {
				target = j
			}
		}
		if target < 0 {
			if m := revertSubjRe.FindStringSubmatch(ec.Subject); m != nil {
				for _, j := range bySubject[m[1]] {
					if j > i {
						target = j
						break
					}
				}
			}
		}
		if target >= 0 {
			ec.RevertsSHA = enriched[target].SHA
			enriched[target].RevertedBy = ec.SHA
		}
	}
}

func resolveSHA(ref string, enriched []models.EnrichedCommit, bySHA map[string]int) int {
	if i, ok := bySHA[ref]; ok {
		return i
	}
	// abbreviated reference: accept a unique prefix match
	match := -1
	for i, ec := range enriched {
		if strings.HasPrefix(ec.SHA, ref) {
			if match >= 0 {
				return -1 // ambiguous
			}
			match = i
		}
	}
	return match
}

// assignStreaks groups each author's commits by calendar day and labels
// maximal runs of consecutive active days with an incrementing id.
func (e *Enricher) assignStreaks(enriched []models.EnrichedCommit) {
	type dayKey struct {
		email string
		day   string
	}
	dayOf := func(ec models.EnrichedCommit) string {
		return ec.AuthoredAt.In(e.location).Format("2006-01-02")
	}

	byAuthor := make(map[string][]string)
	seen := make(map[dayKey]bool)
	for _, ec := range enriched {
		k := dayKey{ec.Author.Email, dayOf(ec)}
		if !seen[k] {
			seen[k] = true
			byAuthor[ec.Author.Email] = append(byAuthor[ec.Author.Email], k.day)
		}
	}

	// assign a streak id to each (author, day)
	streakOfDay := make(map[dayKey]int)
	nextID := 1
	for email, days := range byAuthor {
		sort.Strings(days)
		var prev time.Time
		current := 0
		for _, d := range days {
			t, err := time.ParseInLocation("2006-01-02", d, e.location)
			if err != nil {
				continue
			}
			// calendar-day arithmetic, not wall-clock: a DST day is 23 or
			// 25 hours long and must still continue the streak
			if current == 0 || !t.Equal(prev.AddDate(0, 0, 1)) {
				current = nextID
				nextID++
			}
			streakOfDay[dayKey{email, d}] = current
			prev = t
		}
	}

	for i := range enriched {
		k := dayKey{enriched[i].Author.Email, dayOf(enriched[i])}
		enriched[i].StreakID = streakOfDay[k]
	}
}

// MaxStreakDays returns each author's longest consecutive-day run.
func (e *Enricher) MaxStreakDays(enriched []models.EnrichedCommit) map[string]int {
	byStreak := make(map[string]map[int]map[string]bool)
	for _, ec := range enriched {
		email := ec.Author.Email
		if byStreak[email] == nil {
			byStreak[email] = make(map[int]map[string]bool)
		}
		if byStreak[email][ec.StreakID] == nil {
			byStreak[email][ec.StreakID] = make(map[string]bool)
		}
		byStreak[email][ec.StreakID][ec.AuthoredAt.In(e.location).Format("2006-01-02")] = true
	}

	result := make(map[string]int)
	for email, streaks := range byStreak {
		best := 0
		for _, days := range streaks {
			if len(days) > best {
				best = len(days)
			}
		}
		result[email] = best
	}
	return result
}

// rankPercentiles assigns each commit its churn rank within the full
// sequence, in [0, 1).
func (e *Enricher) rankPercentiles(enriched []models.EnrichedCommit) {
	if len(enriched) == 0 {
		return
	}
	order := make([]int, len(enriched))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return enriched[order[a]].Churn() < enriched[order[b]].Churn()
	})
	n := float64(len(enriched))
	for rank, idx := range order {
		enriched[idx].SizePercentile = float64(rank) / n
	}
}
