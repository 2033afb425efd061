package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/policyforge/wspolicy/internal/models"
	"github.com/policyforge/wspolicy/internal/policy"
)

// RuleSource identifies where a rule set came from
type RuleSource struct {
	Type string `json:"type"` // "preset" or "file"
	Name string `json:"name"` // preset name or file path
}

// PolicyCheck holds the rule results for one normalized policy.
type PolicyCheck struct {
	URI     string              `json:"uri"`
	Kind    string              `json:"kind"`
	Status  policy.Status       `json:"status"`
	Results []models.RuleResult `json:"rules"`
}

// CheckResult output structure
type CheckResult struct {
	RuleSet  string        `json:"ruleSet"`
	Source   RuleSource    `json:"source"`
	Mode     string        `json:"mode"`
	Policies []PolicyCheck `json:"policies"`
	Outcome  policy.Status `json:"outcome"`
}

// BuildCheckResult folds per-policy rule results into the overall outcome:
// fail if any policy fails, else warn if any warns.
func BuildCheckResult(config *models.RuleConfig, source RuleSource, checks []PolicyCheck) *CheckResult {
	result := &CheckResult{
		RuleSet:  config.Name,
		Source:   source,
		Mode:     string(config.EffectiveMode()),
		Policies: make([]PolicyCheck, 0, len(checks)),
		Outcome:  policy.StatusPass,
	}
	for _, c := range checks {
		c.Status = policy.Outcome(config, c.Results)
		switch {
		case c.Status == policy.StatusFail:
			result.Outcome = policy.StatusFail
		case c.Status == policy.StatusWarn && result.Outcome == policy.StatusPass:
			result.Outcome = policy.StatusWarn
		}
		result.Policies = append(result.Policies, c)
	}
	return result
}

// FormatCheckText human readable
func FormatCheckText(result *CheckResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s%sRules:%s %s (%s, mode=%s)\n\n", colorBold, colorYellow, colorReset, result.RuleSet, result.Source.Name, result.Mode))

	for _, p := range result.Policies {
		sb.WriteString(fmt.Sprintf("%s%s%s [%s]\n", colorBold, p.URI, colorReset, p.Kind))
		sb.WriteString(strings.Repeat("-", 50) + "\n")
		for _, r := range p.Results {
			switch {
			case r.Passed:
				sb.WriteString(fmt.Sprintf("%s✓%s %s\n", colorGreen, colorReset, r.RuleName))
			case r.Severity == models.RuleSeverityWarn || result.Mode == string(models.RuleModeWarn):
				sb.WriteString(fmt.Sprintf("%s⚠%s %s\n", colorYellow, colorReset, r.RuleName))
				sb.WriteString(fmt.Sprintf("  %s→ %s%s\n", colorYellow, r.FailureMsg, colorReset))
			default:
				sb.WriteString(fmt.Sprintf("%s✗%s %s\n", colorRed, colorReset, r.RuleName))
				sb.WriteString(fmt.Sprintf("  %s→ %s%s\n", colorRed, r.FailureMsg, colorReset))
			}
		}
		sb.WriteString("\n")
	}

	switch result.Outcome {
	case policy.StatusPass:
		sb.WriteString(fmt.Sprintf("%s%s✓ All rule checks passed%s\n", colorBold, colorGreen, colorReset))
	case policy.StatusWarn:
		sb.WriteString(fmt.Sprintf("%s%s⚠ Rule check passed with warnings%s\n", colorBold, colorYellow, colorReset))
	default:
		sb.WriteString(fmt.Sprintf("%s%s✗ Rule check failed%s\n", colorBold, colorRed, colorReset))
	}

	return sb.String()
}

// FormatCheckJSON raw json
func FormatCheckJSON(result *CheckResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}
