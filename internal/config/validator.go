package config

import (
	"fmt"
	"path"
	"time"
)

// Validate rejects configurations that would produce nonsense results
// rather than letting them fail mid-run.
func Validate(cfg *Config) error {
	if cfg.Repo.GitTimeoutSecs <= 0 {
		return fmt.Errorf("repo.git_timeout_secs must be positive, got %d", cfg.Repo.GitTimeoutSecs)
	}
	if cfg.Repo.LogTimeoutSecs < cfg.Repo.GitTimeoutSecs {
		return fmt.Errorf("repo.log_timeout_secs (%d) must be >= repo.git_timeout_secs (%d)",
			cfg.Repo.LogTimeoutSecs, cfg.Repo.GitTimeoutSecs)
	}

	a := cfg.Analysis
	if a.WorkerLimit <= 0 {
		return fmt.Errorf("analysis.worker_limit must be positive, got %d", a.WorkerLimit)
	}
	if !(a.SizeTiny < a.SizeSmall && a.SizeSmall < a.SizeMedium && a.SizeMedium < a.SizeLarge) {
		return fmt.Errorf("size thresholds must be strictly increasing: %d, %d, %d, %d",
			a.SizeTiny, a.SizeSmall, a.SizeMedium, a.SizeLarge)
	}
	if a.Timezone != "" {
		if _, err := time.LoadLocation(a.Timezone); err != nil {
			return fmt.Errorf("analysis.timezone %q: %w", a.Timezone, err)
		}
	}

	b := cfg.Branch
	if b.ConfidenceFloor <= 0 || b.ConfidenceFloor > 1 {
		return fmt.Errorf("branch.confidence_floor must be in (0, 1], got %g", b.ConfidenceFloor)
	}
	if b.SquashScanWindow <= 0 {
		return fmt.Errorf("branch.squash_scan_window must be positive, got %d", b.SquashScanWindow)
	}
	if b.StaleAfterDays <= 0 || b.AbandonedAfterDays <= b.StaleAfterDays {
		return fmt.Errorf("branch staleness thresholds must satisfy 0 < stale (%d) < abandoned (%d)",
			b.StaleAfterDays, b.AbandonedAfterDays)
	}
	for _, pat := range b.ProtectedPatterns {
		if _, err := path.Match(pat, "probe"); err != nil {
			return fmt.Errorf("branch.protected_patterns %q: %w", pat, err)
		}
	}

	if cfg.Blame.BusFactorCoverage <= 0 || cfg.Blame.BusFactorCoverage > 1 {
		return fmt.Errorf("blame.bus_factor_coverage must be in (0, 1], got %g", cfg.Blame.BusFactorCoverage)
	}

	switch cfg.Storage.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("storage.driver must be sqlite3 or postgres, got %q", cfg.Storage.Driver)
	}

	if cfg.GitHub.Enabled {
		if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
			return fmt.Errorf("github.owner and github.repo are required when github.enabled")
		}
		if cfg.GitHub.RequestsPerSecond <= 0 {
			return fmt.Errorf("github.requests_per_second must be positive, got %g", cfg.GitHub.RequestsPerSecond)
		}
	}

	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}
	return nil
}
