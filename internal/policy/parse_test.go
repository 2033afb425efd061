package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/policyforge/wspolicy/internal/models"
	"gopkg.in/yaml.v3"
)

func TestParseRules_Defaults(t *testing.T) {
	yamlContent := `
name: "Test Rules"
rules:
  - name: "test_rule"
    expr: 'input.policy.kind != "null"'
    failure_msg: "Null policy"
`

	var config models.RuleConfig
	if err := yaml.Unmarshal([]byte(yamlContent), &config); err != nil {
		t.Fatalf("failed to parse YAML: %v", err)
	}

	if config.EffectiveMode() != models.RuleModeWarn {
		t.Errorf("mode = %q, want warn", config.EffectiveMode())
	}
	if len(config.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(config.Rules))
	}
	rule := config.Rules[0]
	if rule.EffectiveSeverity() != models.RuleSeverityError {
		t.Errorf("severity = %q, want error", rule.EffectiveSeverity())
	}
	if rule.ControlRefs != nil {
		t.Errorf("ControlRefs should be nil, got %v", rule.ControlRefs)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
name: "Custom"
mode: strict
rules:
  - name: "https_required"
    expr: 'input.policy.alternatives.all(alt, alt.exists(a, a.local == "HttpsToken"))'
    failure_msg: "HTTPS is not required"
    severity: error
    control_refs: ["tls-1"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	want := &models.RuleConfig{
		Name: "Custom",
		Mode: models.RuleModeStrict,
		Rules: []models.Rule{{
			Name:        "https_required",
			Expr:        `input.policy.alternatives.all(alt, alt.exists(a, a.local == "HttpsToken"))`,
			FailureMsg:  "HTTPS is not required",
			Severity:    models.RuleSeverityError,
			ControlRefs: []string{"tls-1"},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadRules mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRules_Errors(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknown, []byte("name: x\npolicies: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRules(unknown); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, err := LoadRules(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
