package patterns

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/devstats/devstats-go/internal/models"
)

var (
	prMarkerRe  = regexp.MustCompile(`\(#\d+\)|Merge pull request #\d+|Reviewed-by:|Reviewed-on:`)
	forcePushRe = regexp.MustCompile(`(?m)forced-update|reset: moving to|rebase \(finish\)`)
)

func isProtectedName(name string, pats []string) bool {
	short := name
	for _, remote := range []string{"origin/", "upstream/"} {
		if strings.HasPrefix(short, remote) {
			short = short[len(remote):]
		}
	}
	for _, pat := range pats {
		if ok, _ := path.Match(pat, short); ok {
			return true
		}
	}
	return false
}

// detectWIPOnProtected flags work-in-progress commits that landed on the
// analyzed history. WIP subjects on a shared branch mean unfinished work
// shipped.
func detectWIPOnProtected(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	for _, c := range in.Commits {
		if c.IsWIP {
			out = append(out, models.DetectedPattern{
				Severity:    models.SeverityWarning,
				Description: fmt.Sprintf("work-in-progress commit on shared history: %q", c.Subject),
				Evidence:    c.SHA,
				DetectedAt:  c.AuthoredAt,
			})
		}
	}
	return out
}

// detectUnsquashedFixups flags fixup!/squash! commits that survived into
// history instead of being autosquashed.
func detectUnsquashedFixups(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	for _, c := range in.Commits {
		if c.IsFixup {
			out = append(out, models.DetectedPattern{
				Severity:    models.SeverityWarning,
				Description: fmt.Sprintf("unsquashed fixup commit: %q", c.Subject),
				Evidence:    c.SHA,
				DetectedAt:  c.AuthoredAt,
			})
		}
	}
	return out
}

// detectSingleOwnerFiles flags files whose bus factor is 1, above a
// noise floor so trivial files stay quiet.
func detectSingleOwnerFiles(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	for _, b := range in.Blames {
		if b.NotBlameable || b.BusFactor != 1 || b.TotalLines < in.Config.BlameNoiseFloor {
			continue
		}
		owner := ""
		if len(b.Authors) > 0 {
			owner = b.Authors[0].Author.Email
		}
		out = append(out, models.DetectedPattern{
			Severity:    models.SeverityWarning,
			Description: fmt.Sprintf("%d lines owned entirely by %s", b.TotalLines, owner),
			Evidence:    b.Path,
		})
	}
	return out
}

// detectForcePushes reads history-rewrite markers out of the reflog.
func detectForcePushes(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	refs := make([]string, 0, len(in.Reflog))
	for ref := range in.Reflog {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		matches := forcePushRe.FindAllString(in.Reflog[ref], -1)
		if len(matches) == 0 {
			continue
		}
		severity := models.SeverityInfo
		if isProtectedName(ref, in.Config.ProtectedPatterns) {
			severity = models.SeverityCritical
		}
		out = append(out, models.DetectedPattern{
			Severity:    severity,
			Description: fmt.Sprintf("%d history rewrite(s) in reflog", len(matches)),
			Evidence:    ref,
		})
	}
	return out
}

// detectUnreviewedDirect flags non-merge commits that carry no review
// marker: no pull-request reference in the subject and no reviewer
// trailer in the body.
func detectUnreviewedDirect(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	for _, c := range in.Commits {
		if c.IsMerge() {
			continue
		}
		if prMarkerRe.MatchString(c.Subject) || prMarkerRe.MatchString(c.Body) {
			continue
		}
		out = append(out, models.DetectedPattern{
			Severity:    models.SeverityInfo,
			Description: "commit landed without a review marker",
			Evidence:    c.SHA,
			DetectedAt:  c.AuthoredAt,
		})
	}
	return out
}

// detectOversized flags commits whose churn crosses the ceiling. Merge
// commits are exempt; their numstat aggregates both sides.
func detectOversized(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	for _, c := range in.Commits {
		if c.IsMerge() || c.Churn() < in.Config.OversizedChurn {
			continue
		}
		out = append(out, models.DetectedPattern{
			Severity:    models.SeverityWarning,
			Description: fmt.Sprintf("commit churns %d lines across %d files", c.Churn(), len(c.Files)),
			Evidence:    c.SHA,
			DetectedAt:  c.AuthoredAt,
		})
	}
	return out
}

// detectRiskyTiming flags weekend and late-Friday commits. Timing is
// judged in the author's own offset as recorded in the commit.
func detectRiskyTiming(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	for _, c := range in.Commits {
		t := c.AuthoredAt
		day := t.Weekday()
		switch {
		case day == time.Saturday || day == time.Sunday:
			out = append(out, models.DetectedPattern{
				Severity:    models.SeverityInfo,
				Description: fmt.Sprintf("weekend commit (%s)", day),
				Evidence:    c.SHA,
				DetectedAt:  t,
			})
		case day == time.Friday && t.Hour() >= 16:
			out = append(out, models.DetectedPattern{
				Severity:    models.SeverityInfo,
				Description: fmt.Sprintf("late Friday commit (%02d:%02d)", t.Hour(), t.Minute()),
				Evidence:    c.SHA,
				DetectedAt:  t,
			})
		}
	}
	return out
}

// detectNightOwl fires once when a substantial share of history lands
// inside the configured night window. One late commit is normal; a
// fifth of them is a working pattern.
func detectNightOwl(in Input) []models.DetectedPattern {
	if len(in.Commits) < 10 {
		return nil
	}
	night := 0
	for _, c := range in.Commits {
		h := c.AuthoredAt.Hour()
		if h >= in.Config.NightStartHour && h < in.Config.NightEndHour {
			night++
		}
	}
	ratio := float64(night) / float64(len(in.Commits))
	if ratio < 0.2 {
		return nil
	}
	return []models.DetectedPattern{{
		Severity: models.SeverityInfo,
		Description: fmt.Sprintf("%d of %d commits (%.0f%%) authored between %02d:00 and %02d:00",
			night, len(in.Commits), ratio*100, in.Config.NightStartHour, in.Config.NightEndHour),
		Evidence: "history",
	}}
}

// detectMergeHeavy fires once when merge commits make up an outsized
// share of history.
func detectMergeHeavy(in Input) []models.DetectedPattern {
	if len(in.Commits) < 10 {
		return nil
	}
	merges := 0
	for _, c := range in.Commits {
		if c.IsMerge() {
			merges++
		}
	}
	ratio := float64(merges) / float64(len(in.Commits))
	if ratio < 0.3 {
		return nil
	}
	return []models.DetectedPattern{{
		Severity:    models.SeverityInfo,
		Description: fmt.Sprintf("%d of %d commits (%.0f%%) are merges", merges, len(in.Commits), ratio*100),
		Evidence:    "history",
	}}
}

// detectEmptyCommits flags non-merge commits that changed nothing.
func detectEmptyCommits(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	for _, c := range in.Commits {
		if c.IsMerge() || c.Partial || len(c.Files) > 0 {
			continue
		}
		out = append(out, models.DetectedPattern{
			Severity:    models.SeverityInfo,
			Description: fmt.Sprintf("empty commit: %q", c.Subject),
			Evidence:    c.SHA,
			DetectedAt:  c.AuthoredAt,
		})
	}
	return out
}

// detectRevertOfRevert flags reverts whose target is itself a revert,
// a churn loop that usually signals a contested change.
func detectRevertOfRevert(in Input) []models.DetectedPattern {
	bySHA := make(map[string]int, len(in.Commits))
	for i, c := range in.Commits {
		bySHA[c.SHA] = i
	}
	var out []models.DetectedPattern
	for _, c := range in.Commits {
		if !c.IsRevert || c.RevertsSHA == "" {
			continue
		}
		if j, ok := bySHA[c.RevertsSHA]; ok && in.Commits[j].IsRevert {
			out = append(out, models.DetectedPattern{
				Severity:    models.SeverityWarning,
				Description: fmt.Sprintf("revert of a revert (%s)", in.Commits[j].AbbrevSHA),
				Evidence:    c.SHA,
				DetectedAt:  c.AuthoredAt,
			})
		}
	}
	return out
}

// detectShortMessages flags subjects too short to explain the change.
func detectShortMessages(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	for _, c := range in.Commits {
		if c.IsMerge() || c.Partial {
			continue
		}
		if len(strings.TrimSpace(c.Subject)) < in.Config.ShortSubjectLen {
			out = append(out, models.DetectedPattern{
				Severity:    models.SeverityInfo,
				Description: fmt.Sprintf("uninformative subject: %q", c.Subject),
				Evidence:    c.SHA,
				DetectedAt:  c.AuthoredAt,
			})
		}
	}
	return out
}

// detectInconsistentConventions fires once when the history mixes
// conventional and free-form subjects in comparable volume. Either
// style alone is fine; a near-even split means the team never settled.
func detectInconsistentConventions(in Input) []models.DetectedPattern {
	total, typed := 0, 0
	for _, c := range in.Commits {
		if c.IsMerge() {
			continue
		}
		total++
		if c.ConventionalType != "" {
			typed++
		}
	}
	if total < 20 {
		return nil
	}
	share := float64(typed) / float64(total)
	if share < 0.2 || share > 0.8 {
		return nil
	}
	return []models.DetectedPattern{{
		Severity:    models.SeverityInfo,
		Description: fmt.Sprintf("%.0f%% of %d commits use conventional subjects", share*100, total),
		Evidence:    "history",
	}}
}

// detectBinaryBlobs flags binary files tracked at HEAD.
func detectBinaryBlobs(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	for _, b := range in.Blames {
		if !b.NotBlameable || b.Reason != "binary file" {
			continue
		}
		out = append(out, models.DetectedPattern{
			Severity:    models.SeverityInfo,
			Description: "binary file tracked in history",
			Evidence:    b.Path,
		})
	}
	return out
}

// detectHotspots flags files touched by an outsized share of commits.
func detectHotspots(in Input) []models.DetectedPattern {
	if len(in.Commits) < 20 {
		return nil
	}
	touches := make(map[string]int)
	for _, c := range in.Commits {
		if c.IsMerge() {
			continue
		}
		for _, f := range c.Files {
			touches[f.Path]++
		}
	}

	var out []models.DetectedPattern
	threshold := len(in.Commits) / 10
	if threshold < 5 {
		threshold = 5
	}
	paths := make([]string, 0, len(touches))
	for p := range touches {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if touches[p] < threshold {
			continue
		}
		out = append(out, models.DetectedPattern{
			Severity:    models.SeverityWarning,
			Description: fmt.Sprintf("changed in %d of %d commits", touches[p], len(in.Commits)),
			Evidence:    p,
		})
	}
	return out
}
