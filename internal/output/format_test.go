package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devstats/devstats-go/internal/models"
)

func sampleReport() *models.AnalysisReport {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.AnalysisReport{
		RunID:        "run-1",
		RepoPath:     "/tmp/repo",
		TargetBranch: "main",
		StartedAt:    now,
		Commits: []models.EnrichedCommit{{
			CommitRecord: models.CommitRecord{
				SHA: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", AbbrevSHA: "aaaaaaa",
				Author: models.Identity{Name: "Dev", Email: "dev@x.com"}, AuthoredAt: now,
				Subject: "feat: thing", Insertions: 5,
			},
			ConventionalType: "feat", Size: models.SizeTiny,
		}},
		Branches: []models.BranchReport{{
			Name: "feature/x", LastCommitAt: now, CommitsAhead: 1,
			Merge:                models.MergeStatus{SquashMerged: true, SquashConfidence: 0.9},
			DeletabilityScore:    70,
			DeletabilityCategory: models.CategoryLikelyDeletable,
			Status:               models.BranchStale,
		}},
		Patterns: []models.DetectedPattern{{
			Detector: "oversized_commits", Severity: models.SeverityWarning,
			Description: "big", Evidence: "aaaaaaa", DetectedAt: now,
		}},
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var decoded models.AnalysisReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Len(t, decoded.Commits, 1)
}

func TestWriteCommitsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCommitsCSV(&buf, sampleReport().Commits))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "sha", rows[0][0])
	assert.Equal(t, "feat", rows[1][5])
}

func TestWriteBranchesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBranchesCSV(&buf, sampleReport().Branches))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "feature/x", rows[1][0])
	assert.Equal(t, "squash", rows[1][4])
}

func TestTerminalRenderMentionsEverySection(t *testing.T) {
	var buf bytes.Buffer
	report := sampleReport()
	report.Diagnostics = []string{"blame: degraded"}

	NewTerminal(&buf).Render(report)
	out := buf.String()

	assert.Contains(t, out, "Branches")
	assert.Contains(t, out, "feature/x")
	assert.Contains(t, out, "Findings")
	assert.Contains(t, out, "[WARNING]")
	assert.Contains(t, out, "! blame: degraded")
}

func TestTerminalGroupsFindingsBySeverity(t *testing.T) {
	var buf bytes.Buffer
	findings := []models.DetectedPattern{
		{Detector: "a", Severity: models.SeverityInfo, Description: "low", Evidence: "x"},
		{Detector: "b", Severity: models.SeverityCritical, Description: "high", Evidence: "y"},
	}
	NewTerminal(&buf).Patterns(findings)

	out := buf.String()
	assert.Less(t, strings.Index(out, "CRITICAL"), strings.Index(out, "INFO"))
}
