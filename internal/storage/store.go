// Package storage persists analysis reports so successive runs can be
// compared and queried offline.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/devstats/devstats-go/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	repo_path     TEXT NOT NULL,
	target_branch TEXT NOT NULL,
	started_at    TIMESTAMP NOT NULL,
	duration_ms   INTEGER NOT NULL,
	diagnostics   TEXT
);

CREATE TABLE IF NOT EXISTS commits (
	run_id            TEXT NOT NULL,
	sha               TEXT NOT NULL,
	author_name       TEXT NOT NULL,
	author_email      TEXT NOT NULL,
	authored_at       TIMESTAMP NOT NULL,
	subject           TEXT NOT NULL,
	conventional_type TEXT,
	size_category     TEXT NOT NULL,
	insertions        INTEGER NOT NULL,
	deletions         INTEGER NOT NULL,
	files_changed     INTEGER NOT NULL,
	is_merge          INTEGER NOT NULL,
	is_revert         INTEGER NOT NULL,
	reverts_sha       TEXT,
	partial           INTEGER NOT NULL,
	PRIMARY KEY (run_id, sha)
);

CREATE TABLE IF NOT EXISTS branches (
	run_id                TEXT NOT NULL,
	name                  TEXT NOT NULL,
	last_commit_sha       TEXT,
	last_commit_at        TIMESTAMP,
	commits_ahead         INTEGER NOT NULL,
	commits_behind        INTEGER NOT NULL,
	merge_type            TEXT NOT NULL,
	merge_confidence      REAL NOT NULL,
	deletability_score    INTEGER NOT NULL,
	deletability_category TEXT NOT NULL,
	status                TEXT NOT NULL,
	skipped               INTEGER NOT NULL,
	skip_reason           TEXT,
	PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS blames (
	run_id        TEXT NOT NULL,
	path          TEXT NOT NULL,
	total_lines   INTEGER NOT NULL,
	bus_factor    INTEGER NOT NULL,
	not_blameable INTEGER NOT NULL,
	reason        TEXT,
	authors_json  TEXT NOT NULL,
	PRIMARY KEY (run_id, path)
);

CREATE TABLE IF NOT EXISTS contributors (
	run_id          TEXT NOT NULL,
	email           TEXT NOT NULL,
	name            TEXT NOT NULL,
	commit_count    INTEGER NOT NULL,
	insertions      INTEGER NOT NULL,
	deletions       INTEGER NOT NULL,
	active_days     INTEGER NOT NULL,
	files_touched   INTEGER NOT NULL,
	max_streak_days INTEGER NOT NULL,
	first_commit_at TIMESTAMP,
	last_commit_at  TIMESTAMP,
	survival_rate   REAL NOT NULL,
	aliases_json    TEXT,
	PRIMARY KEY (run_id, email)
);

CREATE TABLE IF NOT EXISTS patterns (
	run_id      TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	detector    TEXT NOT NULL,
	severity    TEXT NOT NULL,
	description TEXT NOT NULL,
	evidence    TEXT NOT NULL,
	detected_at TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_commits_author ON commits(run_id, author_email);
CREATE INDEX IF NOT EXISTS idx_patterns_severity ON patterns(run_id, severity);
`

// Store writes analysis reports to SQL. Works against sqlite3 for local
// use and postgres for shared deployments.
type Store struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// Open connects, applies pragmas for sqlite, and ensures the schema.
func Open(driver, dsn string, logger *logrus.Logger) (*Store, error) {
	if driver == "sqlite3" {
		dsn = dsn + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// SaveReport persists one full report in a single transaction.
func (s *Store) SaveReport(ctx context.Context, report *models.AnalysisReport) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	diagnostics, _ := json.Marshal(report.Diagnostics)
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO runs (run_id, repo_path, target_branch, started_at, duration_ms, diagnostics)
			VALUES (?, ?, ?, ?, ?, ?)`),
		report.RunID, report.RepoPath, report.TargetBranch, report.StartedAt,
		report.Duration.Milliseconds(), string(diagnostics)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := s.saveCommits(ctx, tx, report); err != nil {
		return err
	}
	if err := s.saveBranches(ctx, tx, report); err != nil {
		return err
	}
	if err := s.saveBlames(ctx, tx, report); err != nil {
		return err
	}
	if err := s.saveContributors(ctx, tx, report); err != nil {
		return err
	}
	if err := s.savePatterns(ctx, tx, report); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"run_id":  report.RunID,
			"commits": len(report.Commits),
		}).Info("report persisted")
	}
	return nil
}

func (s *Store) saveCommits(ctx context.Context, tx *sqlx.Tx, report *models.AnalysisReport) error {
	stmt := tx.Rebind(`INSERT INTO commits (run_id, sha, author_name, author_email, authored_at,
		subject, conventional_type, size_category, insertions, deletions, files_changed,
		is_merge, is_revert, reverts_sha, partial)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, c := range report.Commits {
		if _, err := tx.ExecContext(ctx, stmt,
			report.RunID, c.SHA, c.Author.Name, c.Author.Email, c.AuthoredAt,
			c.Subject, c.ConventionalType, string(c.Size), c.Insertions, c.Deletions,
			len(c.Files), c.IsMerge(), c.IsRevert, c.RevertsSHA, c.Partial); err != nil {
			return fmt.Errorf("insert commit %s: %w", c.SHA, err)
		}
	}
	return nil
}

func (s *Store) saveBranches(ctx context.Context, tx *sqlx.Tx, report *models.AnalysisReport) error {
	stmt := tx.Rebind(`INSERT INTO branches (run_id, name, last_commit_sha, last_commit_at,
		commits_ahead, commits_behind, merge_type, merge_confidence,
		deletability_score, deletability_category, status, skipped, skip_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, b := range report.Branches {
		if _, err := tx.ExecContext(ctx, stmt,
			report.RunID, b.Name, b.LastCommitSHA, b.LastCommitAt,
			b.CommitsAhead, b.CommitsBehind, string(b.Merge.MergeType()), b.Merge.BestConfidence(),
			b.DeletabilityScore, string(b.DeletabilityCategory), string(b.Status),
			b.Skipped, b.SkipReason); err != nil {
			return fmt.Errorf("insert branch %s: %w", b.Name, err)
		}
	}
	return nil
}

func (s *Store) saveBlames(ctx context.Context, tx *sqlx.Tx, report *models.AnalysisReport) error {
	stmt := tx.Rebind(`INSERT INTO blames (run_id, path, total_lines, bus_factor,
		not_blameable, reason, authors_json) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for _, b := range report.Blames {
		authors, err := json.Marshal(b.Authors)
		if err != nil {
			return fmt.Errorf("marshal blame authors for %s: %w", b.Path, err)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			report.RunID, b.Path, b.TotalLines, b.BusFactor,
			b.NotBlameable, b.Reason, string(authors)); err != nil {
			return fmt.Errorf("insert blame %s: %w", b.Path, err)
		}
	}
	return nil
}

func (s *Store) saveContributors(ctx context.Context, tx *sqlx.Tx, report *models.AnalysisReport) error {
	stmt := tx.Rebind(`INSERT INTO contributors (run_id, email, name, commit_count,
		insertions, deletions, active_days, files_touched, max_streak_days,
		first_commit_at, last_commit_at, survival_rate, aliases_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, c := range report.Contributors {
		aliases, err := json.Marshal(c.Aliases)
		if err != nil {
			return fmt.Errorf("marshal aliases for %s: %w", c.Canonical.Email, err)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			report.RunID, c.Canonical.Email, c.Canonical.Name, c.CommitCount,
			c.Insertions, c.Deletions, c.ActiveDays, c.FilesTouched, c.MaxStreakDays,
			c.FirstCommitAt, c.LastCommitAt, c.SurvivalRate, string(aliases)); err != nil {
			return fmt.Errorf("insert contributor %s: %w", c.Canonical.Email, err)
		}
	}
	return nil
}

func (s *Store) savePatterns(ctx context.Context, tx *sqlx.Tx, report *models.AnalysisReport) error {
	stmt := tx.Rebind(`INSERT INTO patterns (run_id, seq, detector, severity, description,
		evidence, detected_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, p := range report.Patterns {
		if _, err := tx.ExecContext(ctx, stmt,
			report.RunID, i, p.Detector, string(p.Severity), p.Description,
			p.Evidence, p.DetectedAt); err != nil {
			return fmt.Errorf("insert pattern %d: %w", i, err)
		}
	}
	return nil
}

// RunSummary is a stored run's header row.
type RunSummary struct {
	RunID        string    `db:"run_id"`
	RepoPath     string    `db:"repo_path"`
	TargetBranch string    `db:"target_branch"`
	StartedAt    time.Time `db:"started_at"`
	DurationMS   int64     `db:"duration_ms"`
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunSummary
	err := s.db.SelectContext(ctx, &runs, s.db.Rebind(
		`SELECT run_id, repo_path, target_branch, started_at, duration_ms
		 FROM runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
