package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/devstats/devstats-go/internal/models"
)

// secretRules pair a label with a pattern matched against added diff
// lines only; deleted secrets were already exposed and removing them is
// the fix, not the problem.
var secretRules = []struct {
	label string
	re    *regexp.Regexp
}{
	{"AWS access key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"GitHub token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`)},
	{"Slack token", regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`)},
	{"private key", regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
	{"password in URL", regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^/\s:@]+:[^/\s:@]+@`)},
	{"generic API token", regexp.MustCompile(`(?i)(?:api[_-]?key|secret|token|passwd|password)\s*[:=]\s*['"][A-Za-z0-9+/_=-]{16,}['"]`)},
}

// detectSecrets scans the added lines of each available patch for
// credential-shaped strings. Only the line's presence is reported, never
// its content.
func detectSecrets(in Input) []models.DetectedPattern {
	var out []models.DetectedPattern
	shas := make([]string, 0, len(in.Patches))
	for sha := range in.Patches {
		shas = append(shas, sha)
	}
	// deterministic output order; Patches is a map
	sort.Strings(shas)

	for _, sha := range shas {
		for _, line := range strings.Split(in.Patches[sha], "\n") {
			if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
				continue
			}
			for _, rule := range secretRules {
				if !rule.re.MatchString(line) {
					continue
				}
				out = append(out, models.DetectedPattern{
					Severity:    models.SeverityCritical,
					Description: fmt.Sprintf("possible %s added", rule.label),
					Evidence:    sha,
				})
				break // one finding per line
			}
		}
	}
	return out
}
