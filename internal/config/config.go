// Package config loads and validates engine settings from defaults,
// an optional config file, and DEVSTATS_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	envPrefix      = "DEVSTATS"
	keyringService = "devstats"
	keyringUser    = "github-token"
)

// Config is the full settings tree. Field names mirror the config file
// keys; environment overrides use DEVSTATS_SECTION_KEY.
type Config struct {
	Repo     RepoConfig     `mapstructure:"repo"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Branch   BranchConfig   `mapstructure:"branch"`
	Blame    BlameConfig    `mapstructure:"blame"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

type RepoConfig struct {
	Path           string `mapstructure:"path"`
	GitTimeoutSecs int    `mapstructure:"git_timeout_secs"`
	// LogTimeoutSecs bounds the full-history log and blame reads, which
	// run far longer than point queries.
	LogTimeoutSecs int `mapstructure:"log_timeout_secs"`
}

type AnalysisConfig struct {
	MaxDepth        int    `mapstructure:"max_depth"`
	Since           string `mapstructure:"since"`
	Until           string `mapstructure:"until"`
	WorkerLimit     int    `mapstructure:"worker_limit"`
	SizeTiny        int    `mapstructure:"size_tiny"`
	SizeSmall       int    `mapstructure:"size_small"`
	SizeMedium      int    `mapstructure:"size_medium"`
	SizeLarge       int    `mapstructure:"size_large"`
	OversizedChurn  int    `mapstructure:"oversized_churn"`
	ShortSubjectLen int    `mapstructure:"short_subject_len"`
	Timezone        string `mapstructure:"timezone"`
}

type BranchConfig struct {
	Target             string   `mapstructure:"target"`
	IncludeRemote      bool     `mapstructure:"include_remote"`
	ProtectedPatterns  []string `mapstructure:"protected_patterns"`
	ConfidenceFloor    float64  `mapstructure:"confidence_floor"`
	SquashScanWindow   int      `mapstructure:"squash_scan_window"`
	StaleAfterDays     int      `mapstructure:"stale_after_days"`
	AbandonedAfterDays int      `mapstructure:"abandoned_after_days"`
}

type BlameConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	FollowRenames     bool    `mapstructure:"follow_renames"`
	BusFactorCoverage float64 `mapstructure:"bus_factor_coverage"`
	NoiseFloorLines   int     `mapstructure:"noise_floor_lines"`
	CachePath         string  `mapstructure:"cache_path"`
}

type GitHubConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Owner   string `mapstructure:"owner"`
	Repo    string `mapstructure:"repo"`
	// Token falls back to the system keyring, then GITHUB_TOKEN.
	Token string `mapstructure:"token"`
	// RequestsPerSecond throttles API calls, default 2.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type StorageConfig struct {
	// Driver is "sqlite3" or "postgres".
	Driver string `mapstructure:"driver"`
	// DSN is the database path (sqlite) or connection string (postgres).
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
	// File enables teeing logs to a rotating file.
	File string `mapstructure:"file"`
}

// Load reads configuration. A missing config file is fine; defaults and
// environment cover everything. A present but malformed file is an error.
func Load(cfgFile string) (*Config, error) {
	// .env is a development convenience, absence is normal
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("devstats")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "devstats"))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = resolveToken()
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("repo.path", ".")
	v.SetDefault("repo.git_timeout_secs", 30)
	v.SetDefault("repo.log_timeout_secs", 120)

	v.SetDefault("analysis.worker_limit", 8)
	v.SetDefault("analysis.size_tiny", 10)
	v.SetDefault("analysis.size_small", 50)
	v.SetDefault("analysis.size_medium", 200)
	v.SetDefault("analysis.size_large", 500)
	v.SetDefault("analysis.oversized_churn", 500)
	v.SetDefault("analysis.short_subject_len", 10)
	v.SetDefault("analysis.timezone", "UTC")

	v.SetDefault("branch.include_remote", true)
	v.SetDefault("branch.protected_patterns", []string{"main", "master", "develop", "release/*"})
	v.SetDefault("branch.confidence_floor", 0.6)
	v.SetDefault("branch.squash_scan_window", 50)
	v.SetDefault("branch.stale_after_days", 30)
	v.SetDefault("branch.abandoned_after_days", 90)

	v.SetDefault("blame.enabled", true)
	v.SetDefault("blame.follow_renames", true)
	v.SetDefault("blame.bus_factor_coverage", 0.8)
	v.SetDefault("blame.noise_floor_lines", 50)

	v.SetDefault("github.enabled", false)
	v.SetDefault("github.requests_per_second", 2.0)

	v.SetDefault("storage.driver", "sqlite3")
	v.SetDefault("storage.dsn", "devstats.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// resolveToken checks the system keyring first, then the conventional
// environment variable. No token just disables PR evidence.
func resolveToken() string {
	if tok, err := keyring.Get(keyringService, keyringUser); err == nil && tok != "" {
		return tok
	}
	return os.Getenv("GITHUB_TOKEN")
}

// StoreToken saves a GitHub token in the system keyring.
func StoreToken(token string) error {
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		return fmt.Errorf("store token in keyring: %w", err)
	}
	return nil
}
