package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/policyforge/wspolicy/internal/observability/receipt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	transportFile   = "../../testdata/policies/transport.yaml"
	transportV2File = "../../testdata/policies/transport_v2.yaml"
	commonFile      = "../../testdata/policies/common.yaml"
	nullFile        = "../../testdata/policies/unsatisfiable.yaml"
)

// resetFlags restores every flag of cmd and its subcommands to its default.
// Flag values live in package variables and survive between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the CLI with args and returns stdout and the exit code.
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	args = append([]string{"--log-level=error"}, args...)
	code := run(context.Background(), args)
	return out.String(), code
}

func TestNormalizeCommand_Text(t *testing.T) {
	out, code := execute(t, "normalize", transportFile, commonFile)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\n%s", code, out)
	}
	for _, want := range []string{
		"== " + transportFile + "#secure",
		"normal, 2 alternatives, sha256:",
		"== urn:example:policy:timestamp",
		"IncludeTimestamp",
		"RequireClientCertificate",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q\n%s", want, out)
		}
	}
}

func TestNormalizeCommand_JSON(t *testing.T) {
	out, code := execute(t, "normalize", transportFile, commonFile,
		"--uri", transportFile+"#secure", "--format", "json")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\n%s", code, out)
	}

	var parsed []struct {
		URI    string `json:"uri"`
		Digest string `json:"digest"`
		Policy struct {
			ID           string  `json:"id"`
			Kind         string  `json:"kind"`
			Alternatives [][]any `json:"alternatives"`
		} `json:"policy"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(parsed) != 1 {
		t.Fatalf("got %d policies, want 1", len(parsed))
	}
	p := parsed[0]
	if p.URI != transportFile+"#secure" || p.Policy.ID != "secure" || p.Policy.Kind != "normal" {
		t.Errorf("unexpected policy header: %+v", p)
	}
	if len(p.Policy.Alternatives) != 2 {
		t.Errorf("alternatives = %d, want 2", len(p.Policy.Alternatives))
	}
	if !strings.HasPrefix(p.Digest, "sha256:") {
		t.Errorf("digest = %q, want sha256 prefix", p.Digest)
	}
}

func TestNormalizeCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unresolved reference", []string{"normalize", transportFile}},
		{"unknown uri", []string{"normalize", commonFile, "--uri", "urn:missing"}},
		{"bad format", []string{"normalize", commonFile, "--format", "xml"}},
		{"missing file", []string{"normalize", "../../testdata/policies/nope.yaml"}},
		{"alternative limit", []string{"normalize", transportFile, commonFile, "--alternative-limit", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, code := execute(t, tt.args...); code != exitError {
				t.Errorf("exit code = %d, want %d", code, exitError)
			}
		})
	}
}

func TestNormalizeCommand_NullPolicy(t *testing.T) {
	out, code := execute(t, "normalize", nullFile)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, "(null, 0 alternatives") {
		t.Errorf("output should report a null policy\n%s", out)
	}
}

func TestDumpCommand(t *testing.T) {
	out, code := execute(t, "dump", commonFile, "--format", "yaml")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	for _, want := range []string{"id: timestamp", "uri: urn:example:policy:timestamp", "IncludeTimestamp"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q\n%s", want, out)
		}
	}
}

func TestDiffCommand(t *testing.T) {
	t.Run("removed alternative fails on info", func(t *testing.T) {
		out, code := execute(t, "diff", transportFile, transportV2File, "--include", commonFile)
		if code != exitFindings {
			t.Fatalf("exit code = %d, want %d\n%s", code, exitFindings, out)
		}
		if !strings.Contains(out, "ALTERNATIVE_REMOVED") || !strings.Contains(out, "MODERATE (1)") {
			t.Errorf("output should report the removed alternative\n%s", out)
		}
	})

	t.Run("removed alternative passes on critical", func(t *testing.T) {
		out, code := execute(t, "diff", transportFile, transportV2File, "--include", commonFile, "--fail-on", "critical")
		if code != 0 {
			t.Fatalf("exit code = %d, want 0\n%s", code, out)
		}
		if strings.Contains(out, "urn:example:policy:timestamp") {
			t.Errorf("included policies should not be compared\n%s", out)
		}
	})

	t.Run("added alternative fails on critical", func(t *testing.T) {
		out, code := execute(t, "diff", transportV2File, transportFile, "--include", commonFile,
			"--fail-on", "critical", "--format", "json")
		if code != exitFindings {
			t.Fatalf("exit code = %d, want %d\n%s", code, exitFindings, out)
		}
		var report DiffReport
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if report.Summary.Critical != 1 || report.Outcome != "FAIL" {
			t.Errorf("report = %+v, want one critical change and FAIL", report.Summary)
		}
		if len(report.Policies) != 1 || report.Policies[0].Policy != "#secure" {
			t.Errorf("policies = %+v, want only #secure", report.Policies)
		}
	})

	t.Run("identical documents pass", func(t *testing.T) {
		out, code := execute(t, "diff", transportFile, transportFile, "--include", commonFile)
		if code != 0 {
			t.Fatalf("exit code = %d, want 0\n%s", code, out)
		}
		if !strings.Contains(out, "No changes detected") {
			t.Errorf("output should report no changes\n%s", out)
		}
	})

	t.Run("invalid fail-on", func(t *testing.T) {
		if _, code := execute(t, "diff", commonFile, commonFile, "--fail-on", "high"); code != exitError {
			t.Errorf("exit code = %d, want %d", code, exitError)
		}
	})
}

func TestCheckCommand(t *testing.T) {
	t.Run("baseline passes", func(t *testing.T) {
		out, code := execute(t, "check", transportFile, commonFile)
		if code != 0 {
			t.Fatalf("exit code = %d, want 0\n%s", code, out)
		}
		if !strings.Contains(out, "All rule checks passed") {
			t.Errorf("output should report a pass\n%s", out)
		}
	})

	t.Run("baseline only warns on null policy", func(t *testing.T) {
		out, code := execute(t, "check", nullFile, "--format", "json")
		if code != 0 {
			t.Fatalf("exit code = %d, want 0\n%s", code, out)
		}
		var result CheckResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if result.Outcome != "warn" {
			t.Errorf("outcome = %s, want warn", result.Outcome)
		}
	})

	t.Run("strict fails on null policy", func(t *testing.T) {
		out, code := execute(t, "check", nullFile, "--preset", "strict")
		if code != exitFindings {
			t.Fatalf("exit code = %d, want %d\n%s", code, exitFindings, out)
		}
		if !strings.Contains(out, "policy_not_null") {
			t.Errorf("output should name the failed rule\n%s", out)
		}
	})

	t.Run("custom rules", func(t *testing.T) {
		rules := filepath.Join(t.TempDir(), "rules.yaml")
		writeFile(t, rules, `name: "Custom"
mode: strict
rules:
  - name: "requires_timestamp"
    expr: 'input.policy.alternatives.all(alt, alt.exists(a, a.local == "IncludeTimestamp"))'
    failure_msg: "Every alternative must include a timestamp"
`)
		out, code := execute(t, "check", transportFile, commonFile, "--rules", rules, "--uri", transportFile+"#secure")
		if code != 0 {
			t.Fatalf("exit code = %d, want 0\n%s", code, out)
		}
	})

	t.Run("preset and rules conflict", func(t *testing.T) {
		if _, code := execute(t, "check", commonFile, "--preset", "strict", "--rules", "x.yaml"); code != exitError {
			t.Errorf("exit code = %d, want %d", code, exitError)
		}
	})
}

func TestRulesCommands(t *testing.T) {
	out, code := execute(t, "rules", "list")
	if code != 0 {
		t.Fatalf("list exit code = %d", code)
	}
	if !strings.Contains(out, "baseline") || !strings.Contains(out, "strict") {
		t.Errorf("list should name both presets\n%s", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, bad, `name: "Bad"
rules:
  - name: "broken"
    expr: 'input.policy.kind =='
    failure_msg: "never"
`)
	if _, code := execute(t, "rules", "validate", bad); code != exitError {
		t.Errorf("validate exit code = %d, want %d", code, exitError)
	}

	out, code = execute(t, "rules", "explain", "--preset", "strict", "--json")
	if code != 0 {
		t.Fatalf("explain exit code = %d", code)
	}
	var explained ExplainOutput
	if err := json.Unmarshal([]byte(out), &explained); err != nil {
		t.Fatalf("explain output is not valid JSON: %v", err)
	}
	if explained.Mode != "strict" {
		t.Errorf("mode = %s, want strict", explained.Mode)
	}
}

func TestReceipt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	if _, code := execute(t, "normalize", transportFile, commonFile, "--receipt", path); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read receipt: %v", err)
	}
	var r receipt.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("receipt is not valid JSON: %v", err)
	}
	if r.Command != "wspolicy normalize" || r.Result.Status != "success" {
		t.Errorf("receipt = %s %s, want wspolicy normalize success", r.Command, r.Result.Status)
	}
	if len(r.Inputs) != 2 {
		t.Errorf("inputs = %d, want 2", len(r.Inputs))
	}
	if r.Normalization == nil || len(r.Normalization.Policies) != 2 {
		t.Errorf("normalization summary = %+v, want 2 policies", r.Normalization)
	}
}

func TestPairModels_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.yaml")
	writeFile(t, oldPath, `id: a
namespace: "1.5"
policy: []
---
id: b
namespace: "1.5"
policy: []
`)
	newPath := filepath.Join(dir, "new.yaml")
	writeFile(t, newPath, `id: a
namespace: "1.5"
policy: []
---
id: a
uri: urn:other
namespace: "1.5"
policy: []
`)
	ctx := context.Background()
	oldReg, err := loadDocuments(ctx, []string{oldPath})
	if err != nil {
		t.Fatalf("loadDocuments(old) error: %v", err)
	}
	newReg, err := loadDocuments(ctx, []string{newPath})
	if err != nil {
		t.Fatalf("loadDocuments(new) error: %v", err)
	}

	if _, err := pairModels(oldReg, newReg, "", "", nil); err == nil {
		t.Error("expected error for duplicate ids")
	}

	pairs, err := pairModels(newReg, oldReg, newPath+"#a", "", nil)
	if err == nil {
		t.Errorf("expected error when --new-uri is missing for a multi-policy document, got %d pairs", len(pairs))
	}

	pairs, err = pairModels(oldReg, oldReg, "", "", nil)
	if err != nil {
		t.Fatalf("pairModels() error: %v", err)
	}
	if len(pairs) != 2 || pairs[0].Label != "#a" || pairs[1].Label != "#b" {
		t.Errorf("pairs = %+v, want #a and #b", pairs)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
