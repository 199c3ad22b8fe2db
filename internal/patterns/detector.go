// Package patterns runs a fixed list of anomaly detectors over the
// artifacts of one analysis run.
package patterns

import (
	"time"

	"github.com/devstats/devstats-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Input is the read-only view a detector sees. Detectors are pure
// functions of this snapshot: no git access, no shared state.
type Input struct {
	Commits      []models.EnrichedCommit
	Branches     []models.BranchReport
	Blames       []models.FileBlameReport
	Contributors []models.ContributorProfile
	// Patches maps commit SHA to its unified diff, populated for a
	// bounded window of recent commits.
	Patches map[string]string
	// Reflog maps ref name to raw reflog text.
	Reflog map[string]string
	Config Config
	Now    time.Time
}

// Config carries detector thresholds.
type Config struct {
	ProtectedPatterns []string
	// BlameNoiseFloor is the minimum line count before single-owner
	// files are flagged, default 50.
	BlameNoiseFloor int
	// OversizedChurn flags commits with churn at or above this, default 500.
	OversizedChurn int
	// ShortSubjectLen flags subjects shorter than this, default 10.
	ShortSubjectLen int
	// NightStartHour and NightEndHour bound the night-owl window, default 0-5.
	NightStartHour int
	NightEndHour   int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ProtectedPatterns: []string{"main", "master", "develop", "release/*"},
		BlameNoiseFloor:   50,
		OversizedChurn:    500,
		ShortSubjectLen:   10,
		NightStartHour:    0,
		NightEndHour:      5,
	}
}

// Detector inspects the snapshot and returns findings. Returning an
// empty slice is the normal quiet case.
type Detector struct {
	Name string
	Run  func(Input) []models.DetectedPattern
}

// Registry holds detectors in registration order. Findings are emitted
// in that order and never de-duplicated: two detectors flagging the
// same commit report different problems.
type Registry struct {
	detectors []Detector
	logger    *logrus.Logger
}

// NewRegistry returns a registry preloaded with the standard detectors.
func NewRegistry(logger *logrus.Logger) *Registry {
	r := &Registry{logger: logger}
	for _, d := range standardDetectors() {
		r.Register(d)
	}
	return r
}

// Register appends a detector. Later registrations run later.
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// Names lists registered detectors in run order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.detectors))
	for i, d := range r.detectors {
		names[i] = d.Name
	}
	return names
}

// Detect runs every detector and concatenates findings. A detector
// returning nothing is not an error; there is no short-circuit.
func (r *Registry) Detect(in Input) []models.DetectedPattern {
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	if in.Config.OversizedChurn == 0 {
		in.Config = DefaultConfig()
	}

	var findings []models.DetectedPattern
	for _, d := range r.detectors {
		found := d.Run(in)
		for i := range found {
			found[i].Detector = d.Name
			if found[i].DetectedAt.IsZero() {
				found[i].DetectedAt = in.Now
			}
		}
		findings = append(findings, found...)
		if r.logger != nil && len(found) > 0 {
			r.logger.WithFields(logrus.Fields{
				"detector": d.Name,
				"findings": len(found),
			}).Debug("detector fired")
		}
	}
	return findings
}

func standardDetectors() []Detector {
	return []Detector{
		{Name: "secrets_in_diff", Run: detectSecrets},
		{Name: "wip_on_protected", Run: detectWIPOnProtected},
		{Name: "unsquashed_fixups", Run: detectUnsquashedFixups},
		{Name: "single_owner_files", Run: detectSingleOwnerFiles},
		{Name: "force_pushes", Run: detectForcePushes},
		{Name: "unreviewed_direct_commits", Run: detectUnreviewedDirect},
		{Name: "oversized_commits", Run: detectOversized},
		{Name: "risky_timing", Run: detectRiskyTiming},
		{Name: "night_owl", Run: detectNightOwl},
		{Name: "merge_heavy", Run: detectMergeHeavy},
		{Name: "empty_commits", Run: detectEmptyCommits},
		{Name: "revert_of_revert", Run: detectRevertOfRevert},
		{Name: "short_messages", Run: detectShortMessages},
		{Name: "inconsistent_conventions", Run: detectInconsistentConventions},
		{Name: "binary_blobs", Run: detectBinaryBlobs},
		{Name: "change_hotspots", Run: detectHotspots},
	}
}
