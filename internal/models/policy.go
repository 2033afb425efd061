package models

// RuleMode controls how failed rules affect the outcome.
type RuleMode string

const (
	// RuleModeWarn reports failed rules without failing the check.
	RuleModeWarn RuleMode = "warn"
	// RuleModeStrict fails the check when an error-severity rule fails.
	RuleModeStrict RuleMode = "strict"
)

// RuleSeverity of a single rule
type RuleSeverity string

const (
	RuleSeverityError RuleSeverity = "error"
	RuleSeverityWarn  RuleSeverity = "warn"
)

// RuleConfig from yaml
type RuleConfig struct {
	Name  string   `yaml:"name"`
	Mode  RuleMode `yaml:"mode,omitempty"`
	Rules []Rule   `yaml:"rules"`
}

// Rule is one CEL expression over a normalized policy.
type Rule struct {
	Name        string       `yaml:"name"`
	Expr        string       `yaml:"expr"`
	FailureMsg  string       `yaml:"failure_msg"`
	Severity    RuleSeverity `yaml:"severity,omitempty"`
	ControlRefs []string     `yaml:"control_refs,omitempty"`
}

// EffectiveMode defaults to warn.
func (c *RuleConfig) EffectiveMode() RuleMode {
	if c.Mode == "" {
		return RuleModeWarn
	}
	return c.Mode
}

// EffectiveSeverity defaults to error.
func (r Rule) EffectiveSeverity() RuleSeverity {
	if r.Severity == "" {
		return RuleSeverityError
	}
	return r.Severity
}

// RuleResult eval result
type RuleResult struct {
	RuleName   string       `json:"rule"`
	Passed     bool         `json:"passed"`
	Severity   RuleSeverity `json:"severity"`
	FailureMsg string       `json:"failure_msg,omitempty"`
}
