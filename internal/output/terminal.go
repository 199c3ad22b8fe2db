package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/devstats/devstats-go/internal/models"
)

// Terminal renders human-readable summaries. Width adapts to the
// attached terminal; piped output falls back to 100 columns.
type Terminal struct {
	w     io.Writer
	width int
}

// NewTerminal creates a renderer for w.
func NewTerminal(w io.Writer) *Terminal {
	width := 100
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 40 {
			width = cols
		}
	}
	return &Terminal{w: w, width: width}
}

// Render prints every populated section of the report.
func (t *Terminal) Render(report *models.AnalysisReport) {
	t.header(fmt.Sprintf("Analysis of %s (target %s)", report.RepoPath, report.TargetBranch))
	fmt.Fprintf(t.w, "run %s, %d commits, %s\n\n",
		report.RunID, len(report.Commits), report.Duration.Round(time.Millisecond))

	if len(report.Branches) > 0 {
		t.Branches(report.Branches)
	}
	if len(report.Contributors) > 0 {
		t.Contributors(report.Contributors)
	}
	if len(report.Patterns) > 0 {
		t.Patterns(report.Patterns)
	}
	for _, d := range report.Diagnostics {
		fmt.Fprintf(t.w, "! %s\n", d)
	}
}

// Branches prints the branch survey table.
func (t *Terminal) Branches(branches []models.BranchReport) {
	t.header("Branches")
	tw := tabwriter.NewWriter(t.w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BRANCH\tLAST ACTIVITY\tAHEAD\tBEHIND\tMERGED\tSCORE\tVERDICT")
	for _, b := range branches {
		if b.Skipped {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\tskipped: %s\n", b.Name, b.SkipReason)
			continue
		}
		merged := string(b.Merge.MergeType())
		if conf := b.Merge.BestConfidence(); conf > 0 && conf < 1 {
			merged = fmt.Sprintf("%s (%.0f%%)", merged, conf*100)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%d\t%s\n",
			t.truncate(b.Name, 40), b.LastCommitAt.Format("2006-01-02"),
			b.CommitsAhead, b.CommitsBehind, merged, b.DeletabilityScore, b.DeletabilityCategory)
	}
	tw.Flush()
	fmt.Fprintln(t.w)
}

// Contributors prints the contributor profile table.
func (t *Terminal) Contributors(profiles []models.ContributorProfile) {
	t.header("Contributors")
	tw := tabwriter.NewWriter(t.w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEMAIL\tCOMMITS\t+/-\tDAYS\tSTREAK\tSURVIVAL")
	for _, p := range profiles {
		survival := "n/a"
		if p.SurvivalRate >= 0 {
			survival = fmt.Sprintf("%.0f%%", p.SurvivalRate*100)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t+%d/-%d\t%d\t%d\t%s\n",
			t.truncate(p.Canonical.Name, 24), t.truncate(p.Canonical.Email, 30),
			p.CommitCount, p.Insertions, p.Deletions, p.ActiveDays, p.MaxStreakDays, survival)
	}
	tw.Flush()
	fmt.Fprintln(t.w)
}

// Patterns prints findings grouped by severity, critical first.
func (t *Terminal) Patterns(findings []models.DetectedPattern) {
	t.header("Findings")
	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityWarning, models.SeverityInfo} {
		for _, f := range findings {
			if f.Severity != sev {
				continue
			}
			fmt.Fprintf(t.w, "[%s] %s: %s (%s)\n",
				strings.ToUpper(string(f.Severity)), f.Detector, f.Description, t.truncate(f.Evidence, 50))
		}
	}
	fmt.Fprintln(t.w)
}

// Blames prints per-file ownership, highest bus-factor risk first.
func (t *Terminal) Blames(blames []models.FileBlameReport) {
	t.header("Ownership")
	tw := tabwriter.NewWriter(t.w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLINES\tBUS FACTOR\tTOP OWNER")
	for _, b := range blames {
		if b.NotBlameable {
			continue
		}
		top := ""
		if len(b.Authors) > 0 {
			top = fmt.Sprintf("%s (%.0f%%)", b.Authors[0].Author.Email, b.Authors[0].Ownership*100)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", t.truncate(b.Path, 50), b.TotalLines, b.BusFactor, top)
	}
	tw.Flush()
	fmt.Fprintln(t.w)
}

func (t *Terminal) header(title string) {
	fmt.Fprintf(t.w, "%s\n%s\n", title, strings.Repeat("-", min(len(title), t.width)))
}

func (t *Terminal) truncate(s string, max int) string {
	if max > t.width/2 {
		max = t.width / 2
	}
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
