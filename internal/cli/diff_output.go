package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/policyforge/wspolicy/internal/differ"
)

// FailOnLevel threshold for failure
type FailOnLevel string

const (
	FailOnCritical FailOnLevel = "critical"
	FailOnModerate FailOnLevel = "moderate"
	FailOnInfo     FailOnLevel = "info"
)

// ParseFailOnLevel from string
func ParseFailOnLevel(s string) (FailOnLevel, error) {
	switch strings.ToLower(s) {
	case "critical":
		return FailOnCritical, nil
	case "moderate":
		return FailOnModerate, nil
	case "info":
		return FailOnInfo, nil
	default:
		return "", fmt.Errorf("invalid fail-on level: %s (use critical, moderate, or info)", s)
	}
}

// ShouldFail checks limits
func (f FailOnLevel) ShouldFail(severity differ.SeverityLevel) bool {
	switch f {
	case FailOnCritical:
		return severity == differ.SeverityCritical
	case FailOnModerate:
		return severity >= differ.SeverityModerate
	case FailOnInfo:
		return true // all severities fail
	default:
		return severity == differ.SeverityCritical
	}
}

// PolicyDiff is the comparison of one policy pair.
type PolicyDiff struct {
	Label  string
	OldURI string
	NewURI string
	Result *differ.Result
}

// DiffReport output structure
type DiffReport struct {
	Old      string             `json:"old"`
	New      string             `json:"new"`
	Summary  DiffSummary        `json:"summary"`
	Policies []PolicyDiffOutput `json:"policies"`
	FailOn   string             `json:"failOn"`
	Outcome  string             `json:"outcome"` // "PASS" or "FAIL"
}

// DiffSummary by severity
type DiffSummary struct {
	Critical int `json:"critical"`
	Moderate int `json:"moderate"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// PolicyDiffOutput lists the changes of one policy.
type PolicyDiffOutput struct {
	Policy  string             `json:"policy"`
	OldURI  string             `json:"oldUri,omitempty"`
	NewURI  string             `json:"newUri,omitempty"`
	Changes []ChangeOutputItem `json:"changes"`
}

// ChangeOutputItem detail
type ChangeOutputItem struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// BuildDiffReport from components
func BuildDiffReport(oldPath, newPath string, diffs []PolicyDiff, failOn FailOnLevel) *DiffReport {
	report := &DiffReport{
		Old:      oldPath,
		New:      newPath,
		Policies: []PolicyDiffOutput{},
		FailOn:   string(failOn),
		Outcome:  "PASS",
	}

	for _, d := range diffs {
		out := PolicyDiffOutput{
			Policy:  d.Label,
			OldURI:  d.OldURI,
			NewURI:  d.NewURI,
			Changes: []ChangeOutputItem{},
		}
		if d.Result != nil {
			for _, c := range d.Result.Changes {
				out.Changes = append(out.Changes, ChangeOutputItem{
					Type:     string(c.Type),
					Severity: c.Severity.String(),
					Message:  c.Message,
				})
				switch c.Severity {
				case differ.SeverityCritical:
					report.Summary.Critical++
				case differ.SeverityModerate:
					report.Summary.Moderate++
				default:
					report.Summary.Info++
				}
				report.Summary.Total++
				if failOn.ShouldFail(c.Severity) {
					report.Outcome = "FAIL"
				}
			}
		}
		report.Policies = append(report.Policies, out)
	}

	return report
}

// FormatDiffText human readable
func FormatDiffText(report *DiffReport) string {
	var sb strings.Builder

	if report.Outcome == "PASS" {
		sb.WriteString(fmt.Sprintf("%swspolicy diff: PASS%s (fail-on=%s)\n", colorGreen, colorReset, report.FailOn))
	} else {
		sb.WriteString(fmt.Sprintf("%swspolicy diff: FAIL%s (fail-on=%s)\n", colorRed, colorReset, report.FailOn))
	}
	sb.WriteString(fmt.Sprintf("Old: %s\n", report.Old))
	sb.WriteString(fmt.Sprintf("New: %s\n", report.New))
	sb.WriteString("\n")

	if report.Summary.Total == 0 {
		sb.WriteString(fmt.Sprintf("%s✓ No changes detected%s\n", colorGreen, colorReset))
		return sb.String()
	}

	groups := groupBySeverity(report.Policies)
	sections := []struct {
		key, title, color string
	}{
		{"critical", "CRITICAL", colorRed},
		{"moderate", "MODERATE", colorYellow},
		{"info", "INFO", ""},
	}
	for _, s := range sections {
		items := groups[s.key]
		if len(items) == 0 {
			continue
		}
		if s.color != "" {
			sb.WriteString(fmt.Sprintf("%s%s (%d)%s\n", s.color, s.title, len(items), colorReset))
		} else {
			sb.WriteString(fmt.Sprintf("%s (%d)\n", s.title, len(items)))
		}
		for _, item := range items {
			formatChangeItem(&sb, item, s.color)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

type labeledChange struct {
	policy string
	ChangeOutputItem
}

// groupBySeverity helper
func groupBySeverity(policies []PolicyDiffOutput) map[string][]labeledChange {
	groups := map[string][]labeledChange{
		"critical": {},
		"moderate": {},
		"info":     {},
	}

	for _, p := range policies {
		for _, c := range p.Changes {
			groups[c.Severity] = append(groups[c.Severity], labeledChange{policy: p.Policy, ChangeOutputItem: c})
		}
	}

	// Sort each group by policy for deterministic output
	for k := range groups {
		sort.SliceStable(groups[k], func(i, j int) bool {
			return groups[k][i].policy < groups[k][j].policy
		})
	}

	return groups
}

func formatChangeItem(sb *strings.Builder, c labeledChange, color string) {
	if color != "" {
		sb.WriteString(fmt.Sprintf("%s- %s: %s%s\n", color, c.Type, c.policy, colorReset))
	} else {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", c.Type, c.policy))
	}
	sb.WriteString(fmt.Sprintf("    %s\n", c.Message))
}

// FormatDiffJSON raw json
func FormatDiffJSON(report *DiffReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}
