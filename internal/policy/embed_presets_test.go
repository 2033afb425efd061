package policy

import (
	"testing"

	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"github.com/policyforge/wspolicy/internal/wspolicy"
)

// TestEmbeddedPresetFilesExist verifies that the //go:embed directive is correctly
// configured and the preset YAML files are actually embedded in the binary.
// This test will fail if:
// - The embed directive syntax is broken (e.g., missing space after //go:embed)
// - The preset file paths change without updating the embed directive
// - The preset files are deleted
func TestEmbeddedPresetFilesExist(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"baseline", "presets/baseline.yaml"},
		{"strict", "presets/strict.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := presetFS.ReadFile(tt.path)
			if err != nil {
				t.Fatalf("failed to read embedded file %q: %v (check //go:embed directive)", tt.path, err)
			}
			if len(data) == 0 {
				t.Errorf("embedded file %q is empty", tt.path)
			}
			// Sanity check: should contain YAML-like content
			if len(data) < 10 {
				t.Errorf("embedded file %q suspiciously small (%d bytes)", tt.path, len(data))
			}
		})
	}
}

// TestGetPreset_BaselineAndStrict verifies that GetPreset returns valid, non-empty
// policy configurations for the built-in presets.
// This test catches regressions where:
// - Embed is broken (presetFS empty)
// - YAML parsing fails silently
// - Policy structure changes incompatibly
func TestGetPreset_BaselineAndStrict(t *testing.T) {
	tests := []struct {
		name string
	}{
		{"baseline"},
		{"strict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preset := GetPreset(tt.name)
			if preset == nil {
				t.Fatalf("GetPreset(%q) returned nil (check embed directive and YAML parsing)", tt.name)
			}
			if preset.Name == "" {
				t.Errorf("preset %q has empty Name field", tt.name)
			}
			if len(preset.Rules) == 0 {
				t.Errorf("preset %q has no rules", tt.name)
			}
		})
	}
}

func TestPresetsCompile(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	for _, name := range ListPresetNames() {
		if err := engine.CompileAndValidate(MustGetPreset(name)); err != nil {
			t.Errorf("preset %q: %v", name, err)
		}
	}
}

func TestPresetOutcomes(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	null := wspolicy.NewNullPolicy(sourcemodel.NamespaceV15, "", "")
	empty := wspolicy.NewEmptyPolicy(sourcemodel.NamespaceV15, "", "")

	tests := []struct {
		preset string
		policy *wspolicy.Policy
		want   Status
	}{
		{"baseline", transportPolicy(t), StatusPass},
		{"baseline", null, StatusWarn},
		{"baseline", empty, StatusPass},
		{"strict", transportPolicy(t), StatusPass},
		{"strict", null, StatusFail},
		{"strict", empty, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.preset+"/"+tt.policy.Kind().String(), func(t *testing.T) {
			config := MustGetPreset(tt.preset)
			results, err := engine.Evaluate(config, "u", tt.policy)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if got := Outcome(config, results); got != tt.want {
				t.Errorf("Outcome() = %s, want %s (results %+v)", got, tt.want, results)
			}
		})
	}
}

func TestListPresetNames(t *testing.T) {
	got := ListPresetNames()
	if len(got) != 2 || got[0] != "baseline" || got[1] != "strict" {
		t.Errorf("ListPresetNames() = %v, want [baseline strict]", got)
	}
	if GetPreset("missing") != nil {
		t.Error("GetPreset(missing) should be nil")
	}
}
