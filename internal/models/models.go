package models

import "time"

// ChangeKind is the type of change applied to a file in a commit.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
	ChangeCopied   ChangeKind = "copied"
)

// SizeCategory is the t-shirt size classification of a commit's churn.
type SizeCategory string

const (
	SizeTiny    SizeCategory = "tiny"
	SizeSmall   SizeCategory = "small"
	SizeMedium  SizeCategory = "medium"
	SizeLarge   SizeCategory = "large"
	SizeMassive SizeCategory = "massive"
)

// MergeMethod is how a branch's content reached the target branch.
type MergeMethod string

const (
	MergeExact   MergeMethod = "exact"
	MergeSquash  MergeMethod = "squash"
	MergeRebase  MergeMethod = "rebase"
	MergeUnknown MergeMethod = "unknown"
)

// BranchStatus is the activity status of a branch.
type BranchStatus string

const (
	BranchActive    BranchStatus = "active"
	BranchStale     BranchStatus = "stale"
	BranchAbandoned BranchStatus = "abandoned"
	BranchProtected BranchStatus = "protected"
)

// DeletabilityCategory is the recommendation strength for branch deletion.
type DeletabilityCategory string

const (
	CategorySafeToDelete    DeletabilityCategory = "safe_to_delete"
	CategoryLikelyDeletable DeletabilityCategory = "likely_deletable"
	CategoryUncertain       DeletabilityCategory = "uncertain"
	CategoryKeep            DeletabilityCategory = "keep"
)

// Severity is the severity level of a detected pattern.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Identity is a name/email pair as recorded by git.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FileChange is a single file change within a commit.
type FileChange struct {
	Path       string     `json:"path"`
	Kind       ChangeKind `json:"kind"`
	Insertions int        `json:"insertions"`
	Deletions  int        `json:"deletions"`
	OldPath    string     `json:"old_path,omitempty"` // set for renames/copies
}

// CommitRecord is raw commit metadata harvested from the git log.
// Records are created once by the ingestor and never mutated.
type CommitRecord struct {
	SHA           string       `json:"sha"`
	AbbrevSHA     string       `json:"abbrev_sha"`
	ParentSHAs    []string     `json:"parent_shas"`
	Author        Identity     `json:"author"`
	AuthoredAt    time.Time    `json:"authored_at"`
	Committer     Identity     `json:"committer"`
	CommittedAt   time.Time    `json:"committed_at"`
	Subject       string       `json:"subject"`
	Body          string       `json:"body,omitempty"`
	Files         []FileChange `json:"files"`
	Insertions    int          `json:"insertions"`
	Deletions     int          `json:"deletions"`
	Partial       bool         `json:"partial,omitempty"`
	PartialReason string       `json:"partial_reason,omitempty"`
}

// IsMerge reports whether the commit has more than one parent.
func (c CommitRecord) IsMerge() bool { return len(c.ParentSHAs) > 1 }

// NetLines returns insertions minus deletions.
func (c CommitRecord) NetLines() int { return c.Insertions - c.Deletions }

// Churn returns insertions plus deletions.
func (c CommitRecord) Churn() int { return c.Insertions + c.Deletions }

// EnrichedCommit wraps a CommitRecord with derived classification fields.
// Enrichment is a pure function of the whole commit sequence; the
// underlying record is never changed.
type EnrichedCommit struct {
	CommitRecord

	ConventionalType string       `json:"conventional_type,omitempty"`
	Size             SizeCategory `json:"size"`
	IsFixup          bool         `json:"is_fixup,omitempty"`
	IsRevert         bool         `json:"is_revert,omitempty"`
	IsWIP            bool         `json:"is_wip,omitempty"`
	RevertsSHA       string       `json:"reverts_sha,omitempty"`
	RevertedBy       string       `json:"reverted_by,omitempty"`
	StreakID         int          `json:"streak_id"`
	SizePercentile   float64      `json:"size_percentile"`
}

// MergeStatus describes whether and how a branch reached the target.
type MergeStatus struct {
	Branch           string  `json:"branch"`
	ExactMerged      bool    `json:"exact_merged"`
	SquashMerged     bool    `json:"squash_merged"`
	SquashConfidence float64 `json:"squash_confidence"`
	RebaseMerged     bool    `json:"rebase_merged"`
	RebaseConfidence float64 `json:"rebase_confidence"`
	HasPullRequest   bool    `json:"has_pull_request,omitempty"`
}

// IsMerged reports whether any strategy fired.
func (m MergeStatus) IsMerged() bool {
	return m.ExactMerged || m.SquashMerged || m.RebaseMerged
}

// BestConfidence returns the highest confidence among fired strategies.
func (m MergeStatus) BestConfidence() float64 {
	best := 0.0
	if m.ExactMerged {
		best = 1.0
	}
	if m.SquashMerged && m.SquashConfidence > best {
		best = m.SquashConfidence
	}
	if m.RebaseMerged && m.RebaseConfidence > best {
		best = m.RebaseConfidence
	}
	return best
}

// MergeType returns the highest-confidence positive method.
// Ties prefer exact over squash over rebase.
func (m MergeStatus) MergeType() MergeMethod {
	if !m.IsMerged() {
		return MergeUnknown
	}
	best, method := 0.0, MergeUnknown
	if m.RebaseMerged && m.RebaseConfidence > best {
		best, method = m.RebaseConfidence, MergeRebase
	}
	if m.SquashMerged && m.SquashConfidence >= best {
		method = MergeSquash
	}
	if m.ExactMerged {
		method = MergeExact
	}
	return method
}

// BranchReport is the analysis result for a single branch.
type BranchReport struct {
	Name                 string               `json:"name"`
	IsRemote             bool                 `json:"is_remote"`
	LastAuthor           Identity             `json:"last_author"`
	LastCommitSHA        string               `json:"last_commit_sha"`
	LastCommitAt         time.Time            `json:"last_commit_at"`
	CommitsAhead         int                  `json:"commits_ahead"`
	CommitsBehind        int                  `json:"commits_behind"`
	Merge                MergeStatus          `json:"merge"`
	DeletabilityScore    int                  `json:"deletability_score"`
	DeletabilityCategory DeletabilityCategory `json:"deletability_category"`
	Status               BranchStatus         `json:"status"`
	Skipped              bool                 `json:"skipped,omitempty"`
	SkipReason           string               `json:"skip_reason,omitempty"`
}

// BlameLine attributes one line of a file to an author and commit.
type BlameLine struct {
	LineNumber  int       `json:"line_number"`
	SHA         string    `json:"sha"`
	Author      Identity  `json:"author"`
	CommittedAt time.Time `json:"committed_at"`
}

// AuthorBlameStat aggregates blame ownership for one author on one file.
// Ownership fractions across a file's stats sum to 1.0.
type AuthorBlameStat struct {
	Author    Identity `json:"author"`
	Lines     int      `json:"lines"`
	Ownership float64  `json:"ownership"`
}

// FileBlameReport is the per-line and per-author blame result for a file.
type FileBlameReport struct {
	Path         string            `json:"path"`
	TotalLines   int               `json:"total_lines"`
	Lines        []BlameLine       `json:"lines,omitempty"`
	Authors      []AuthorBlameStat `json:"authors"`
	BusFactor    int               `json:"bus_factor"`
	NotBlameable bool              `json:"not_blameable,omitempty"`
	Reason       string            `json:"reason,omitempty"`
}

// ContributorProfile aggregates activity for one resolved person.
type ContributorProfile struct {
	Canonical     Identity   `json:"canonical"`
	Aliases       []Identity `json:"aliases,omitempty"`
	CommitCount   int        `json:"commit_count"`
	Insertions    int        `json:"insertions"`
	Deletions     int        `json:"deletions"`
	ActiveDays    int        `json:"active_days"`
	FilesTouched  int        `json:"files_touched"`
	MaxStreakDays int        `json:"max_streak_days"`
	FirstCommitAt time.Time  `json:"first_commit_at"`
	LastCommitAt  time.Time  `json:"last_commit_at"`
	// SurvivalRate is -1 when no blame snapshot was taken.
	SurvivalRate float64 `json:"survival_rate"`
}

// DetectedPattern is a single anomaly finding. Findings are never
// de-duplicated across detectors: two detectors may flag the same commit
// for different reasons.
type DetectedPattern struct {
	Detector    string    `json:"detector"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Evidence    string    `json:"evidence"` // commit SHA, file path, or branch name
	DetectedAt  time.Time `json:"detected_at"`
}

// AnalysisReport is the owning container for the entity families produced
// by one run. Sub-collections are independent, keyed by natural
// identifiers; cross-references are stored as identifiers, not embedded.
type AnalysisReport struct {
	RunID        string               `json:"run_id"`
	RepoPath     string               `json:"repo_path"`
	TargetBranch string               `json:"target_branch"`
	StartedAt    time.Time            `json:"started_at"`
	Duration     time.Duration        `json:"duration"`
	Commits      []EnrichedCommit     `json:"commits"`
	Branches     []BranchReport       `json:"branches,omitempty"`
	Blames       []FileBlameReport    `json:"blames,omitempty"`
	Contributors []ContributorProfile `json:"contributors,omitempty"`
	Patterns     []DetectedPattern    `json:"patterns,omitempty"`
	Diagnostics  []string             `json:"diagnostics,omitempty"`
}
