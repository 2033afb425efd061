package policy

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
	"github.com/policyforge/wspolicy/internal/models"
	"github.com/policyforge/wspolicy/internal/wspolicy"
)

// Engine is the rule evaluation engine using CEL
type Engine struct {
	env *cel.Env
}

func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// Evaluate checks every rule against the normalized policy registered under uri.
func (e *Engine) Evaluate(config *models.RuleConfig, uri string, p *wspolicy.Policy) ([]models.RuleResult, error) {
	if p == nil {
		return nil, fmt.Errorf("no policy to evaluate for %q", uri)
	}
	results := make([]models.RuleResult, 0, len(config.Rules))

	input := BuildInput(uri, p)

	for _, rule := range config.Rules {
		result, err := e.evaluateRule(rule, input)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate rule %q: %w", rule.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// evaluateRule
func (e *Engine) evaluateRule(rule models.Rule, input map[string]any) (models.RuleResult, error) {
	failed := func(format string, args ...any) models.RuleResult {
		return models.RuleResult{
			RuleName:   rule.Name,
			Passed:     false,
			Severity:   rule.EffectiveSeverity(),
			FailureMsg: fmt.Sprintf(format, args...),
		}
	}

	ast, issues := e.env.Compile(rule.Expr)
	if issues != nil && issues.Err() != nil {
		return failed("CEL compile error: %v", issues.Err()), nil
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return failed("CEL program error: %v", err), nil
	}

	out, _, err := prg.Eval(map[string]any{
		"input": input,
	})
	if err != nil {
		return failed("CEL evaluation error: %v", err), nil
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return failed("Rule expression must return boolean, got %T", out.Value()), nil
	}

	result := models.RuleResult{
		RuleName: rule.Name,
		Passed:   passed,
		Severity: rule.EffectiveSeverity(),
	}
	if !passed {
		result.FailureMsg = rule.FailureMsg
	}

	return result, nil
}

// CompileAndValidate compiles every rule and checks mode and severity values.
func (e *Engine) CompileAndValidate(config *models.RuleConfig) error {
	var errors []string

	switch config.EffectiveMode() {
	case models.RuleModeWarn, models.RuleModeStrict:
	default:
		errors = append(errors, fmt.Sprintf("invalid mode %q (use warn or strict)", config.Mode))
	}

	for _, rule := range config.Rules {
		if rule.Name == "" {
			errors = append(errors, "rule with empty name")
		}
		switch rule.EffectiveSeverity() {
		case models.RuleSeverityError, models.RuleSeverityWarn:
		default:
			errors = append(errors, fmt.Sprintf("rule %q: invalid severity %q", rule.Name, rule.Severity))
		}
		ast, issues := e.env.Compile(rule.Expr)
		if issues != nil && issues.Err() != nil {
			errors = append(errors, fmt.Sprintf("rule %q: %v", rule.Name, issues.Err()))
			continue
		}
		if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
			errors = append(errors, fmt.Sprintf("rule %q: expression returns %s, want bool", rule.Name, ast.OutputType()))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("rule validation failed:\n  %s", strings.Join(errors, "\n  "))
	}

	return nil
}

// Status of a rule check
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Outcome folds rule results into a status. In strict mode a failed
// error-severity rule fails the check; every other failure only warns.
func Outcome(config *models.RuleConfig, results []models.RuleResult) Status {
	status := StatusPass
	for _, r := range results {
		if r.Passed {
			continue
		}
		if config.EffectiveMode() == models.RuleModeStrict && r.Severity == models.RuleSeverityError {
			return StatusFail
		}
		status = StatusWarn
	}
	return status
}
