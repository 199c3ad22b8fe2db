// Package output renders analysis reports for terminals and machine
// consumers.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/devstats/devstats-go/internal/models"
)

// WriteJSON emits the full report as indented JSON.
func WriteJSON(w io.Writer, report *models.AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteYAML emits the full report as YAML.
func WriteYAML(w io.Writer, report *models.AnalysisReport) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return nil
}

// WriteCommitsCSV emits one row per commit for spreadsheet analysis.
func WriteCommitsCSV(w io.Writer, commits []models.EnrichedCommit) error {
	cw := csv.NewWriter(w)
	header := []string{"sha", "author_name", "author_email", "authored_at", "subject",
		"type", "size", "insertions", "deletions", "files", "is_merge", "is_revert", "partial"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range commits {
		row := []string{
			c.SHA, c.Author.Name, c.Author.Email, c.AuthoredAt.Format("2006-01-02T15:04:05Z07:00"),
			c.Subject, c.ConventionalType, string(c.Size),
			strconv.Itoa(c.Insertions), strconv.Itoa(c.Deletions), strconv.Itoa(len(c.Files)),
			strconv.FormatBool(c.IsMerge()), strconv.FormatBool(c.IsRevert),
			strconv.FormatBool(c.Partial),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBranchesCSV emits one row per branch report.
func WriteBranchesCSV(w io.Writer, branches []models.BranchReport) error {
	cw := csv.NewWriter(w)
	header := []string{"name", "last_commit_at", "ahead", "behind", "merge_type",
		"confidence", "score", "category", "status", "skipped"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range branches {
		row := []string{
			b.Name, b.LastCommitAt.Format("2006-01-02"),
			strconv.Itoa(b.CommitsAhead), strconv.Itoa(b.CommitsBehind),
			string(b.Merge.MergeType()), fmt.Sprintf("%.2f", b.Merge.BestConfidence()),
			strconv.Itoa(b.DeletabilityScore), string(b.DeletabilityCategory),
			string(b.Status), strconv.FormatBool(b.Skipped),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
