// Package contributors resolves author identities across aliases and
// aggregates per-person activity profiles.
package contributors

import (
	"sort"
	"strings"
	"time"

	"github.com/devstats/devstats-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Analyzer merges commit identities into contributor profiles. Merging
// is deliberately conservative: identical emails always merge, identical
// names merge only when the name maps to a single email cluster.
// Distinct people are never collapsed at the cost of occasionally
// leaving a true alias unmerged.
type Analyzer struct {
	location *time.Location
	logger   *logrus.Logger
}

// NewAnalyzer creates a contributor analyzer. Active days are bucketed
// in loc, the same zone the enrichment pass uses for streaks; nil means
// UTC.
func NewAnalyzer(loc *time.Location, logger *logrus.Logger) *Analyzer {
	if loc == nil {
		loc = time.UTC
	}
	return &Analyzer{location: loc, logger: logger}
}

// cluster accumulates one person's raw activity during resolution.
type cluster struct {
	identities map[models.Identity]int // identity -> commit count
	commits    int
	insertions int
	deletions  int
	days       map[string]bool
	files      map[string]bool
	first      time.Time
	last       time.Time
}

// Analyze builds contributor profiles from enriched commits, optionally
// joined with a blame snapshot for survival rates and streak data from
// the enrichment pass. Profiles sort by commit count descending.
func (a *Analyzer) Analyze(commits []models.EnrichedCommit, blames []models.FileBlameReport, maxStreaks map[string]int) []models.ContributorProfile {
	clusters := a.resolve(commits)

	surviving := survivingLines(blames)
	haveBlame := blames != nil

	profiles := make([]models.ContributorProfile, 0, len(clusters))
	for _, c := range clusters {
		p := models.ContributorProfile{
			Canonical:     c.canonical(),
			CommitCount:   c.commits,
			Insertions:    c.insertions,
			Deletions:     c.deletions,
			ActiveDays:    len(c.days),
			FilesTouched:  len(c.files),
			FirstCommitAt: c.first,
			LastCommitAt:  c.last,
			SurvivalRate:  -1,
		}
		for id := range c.identities {
			if id != p.Canonical {
				p.Aliases = append(p.Aliases, id)
			}
			if s, ok := maxStreaks[id.Email]; ok && s > p.MaxStreakDays {
				p.MaxStreakDays = s
			}
		}
		sort.Slice(p.Aliases, func(i, j int) bool { return p.Aliases[i].Email < p.Aliases[j].Email })

		if haveBlame {
			p.SurvivalRate = survivalRate(c, surviving)
		}
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].CommitCount != profiles[j].CommitCount {
			return profiles[i].CommitCount > profiles[j].CommitCount
		}
		return profiles[i].Canonical.Email < profiles[j].Canonical.Email
	})

	if a.logger != nil {
		a.logger.WithFields(logrus.Fields{
			"contributors": len(profiles),
			"commits":      len(commits),
		}).Info("contributors resolved")
	}
	return profiles
}

// resolve clusters identities. Pass one groups by exact email. Pass two
// merges email clusters sharing a normalized name, but only when that
// name is unambiguous, i.e. belongs to exactly the clusters being
// merged and never to more than one person's plausible identity.
func (a *Analyzer) resolve(commits []models.EnrichedCommit) []*cluster {
	byEmail := make(map[string]*cluster)
	order := []string{}
	for _, ec := range commits {
		email := strings.ToLower(strings.TrimSpace(ec.Author.Email))
		c, ok := byEmail[email]
		if !ok {
			c = &cluster{
				identities: make(map[models.Identity]int),
				days:       make(map[string]bool),
				files:      make(map[string]bool),
			}
			byEmail[email] = c
			order = append(order, email)
		}
		c.absorb(ec, a.location)
	}

	// nameOwners: normalized name -> emails using it
	nameOwners := make(map[string][]string)
	for _, email := range order {
		for id := range byEmail[email].identities {
			n := normalizeName(id.Name)
			if n == "" {
				continue
			}
			if !contains(nameOwners[n], email) {
				nameOwners[n] = append(nameOwners[n], email)
			}
		}
	}

	merged := make(map[string]string) // email -> email it merged into
	for name, emails := range nameOwners {
		if len(emails) < 2 {
			continue
		}
		// only merge when every email carrying this name uses it as its
		// dominant name; a shared given name across different people
		// usually fails this test
		if !allDominant(byEmail, emails, name) {
			continue
		}
		root := emails[0]
		for _, other := range emails[1:] {
			if merged[other] != "" || merged[root] != "" {
				continue
			}
			byEmail[root].merge(byEmail[other])
			merged[other] = root
			if a.logger != nil {
				a.logger.WithFields(logrus.Fields{
					"name": name, "into": root, "from": other,
				}).Debug("alias merged")
			}
		}
	}

	var result []*cluster
	for _, email := range order {
		if merged[email] == "" {
			result = append(result, byEmail[email])
		}
	}
	return result
}

func (c *cluster) absorb(ec models.EnrichedCommit, loc *time.Location) {
	c.identities[ec.Author]++
	c.commits++
	c.insertions += ec.Insertions
	c.deletions += ec.Deletions
	c.days[ec.AuthoredAt.In(loc).Format("2006-01-02")] = true
	for _, f := range ec.Files {
		c.files[f.Path] = true
	}
	if c.first.IsZero() || ec.AuthoredAt.Before(c.first) {
		c.first = ec.AuthoredAt
	}
	if ec.AuthoredAt.After(c.last) {
		c.last = ec.AuthoredAt
	}
}

func (c *cluster) merge(other *cluster) {
	for id, n := range other.identities {
		c.identities[id] += n
	}
	c.commits += other.commits
	c.insertions += other.insertions
	c.deletions += other.deletions
	for d := range other.days {
		c.days[d] = true
	}
	for f := range other.files {
		c.files[f] = true
	}
	if c.first.IsZero() || (!other.first.IsZero() && other.first.Before(c.first)) {
		c.first = other.first
	}
	if other.last.After(c.last) {
		c.last = other.last
	}
}

// canonical picks the identity with the most commits; ties break to the
// lexically smaller email for determinism.
func (c *cluster) canonical() models.Identity {
	var best models.Identity
	bestN := -1
	for id, n := range c.identities {
		if n > bestN || (n == bestN && id.Email < best.Email) {
			best = id
			bestN = n
		}
	}
	return best
}

// allDominant reports whether name is the most-used name for every
// listed email cluster.
func allDominant(byEmail map[string]*cluster, emails []string, name string) bool {
	for _, email := range emails {
		c := byEmail[email]
		dominant, dominantN := "", -1
		for id, n := range c.identities {
			if n > dominantN {
				dominant = normalizeName(id.Name)
				dominantN = n
			}
		}
		if dominant != name {
			return false
		}
	}
	return true
}

// survivingLines counts blame-attributed lines per author email.
func survivingLines(blames []models.FileBlameReport) map[string]int {
	result := make(map[string]int)
	for _, b := range blames {
		if b.NotBlameable {
			continue
		}
		for _, s := range b.Authors {
			result[strings.ToLower(s.Author.Email)] += s.Lines
		}
	}
	return result
}

// survivalRate is surviving lines over inserted lines, clamped to
// [0, 1]. Insertions can undercount survivors after renames and
// cherry-picks, hence the clamp.
func survivalRate(c *cluster, surviving map[string]int) float64 {
	if c.insertions == 0 {
		return 0
	}
	lines := 0
	seen := make(map[string]bool)
	for id := range c.identities {
		email := strings.ToLower(id.Email)
		if !seen[email] {
			seen[email] = true
			lines += surviving[email]
		}
	}
	rate := float64(lines) / float64(c.insertions)
	if rate > 1 {
		rate = 1
	}
	return rate
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
