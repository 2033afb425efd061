// Package policy evaluates CEL rules over normalized policies and ships the
// built-in rule presets.
package policy

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/policyforge/wspolicy/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// presetCache holds loaded presets to avoid re-parsing
var (
	presetMu    sync.Mutex
	presetCache = map[string]*models.RuleConfig{}
)

// presetFiles maps preset names to embedded file paths
var presetFiles = map[string]string{
	"baseline": "presets/baseline.yaml",
	"strict":   "presets/strict.yaml",
}

// GetPreset returns a rule preset by name, or nil if not found
func GetPreset(name string) *models.RuleConfig {
	presetMu.Lock()
	defer presetMu.Unlock()

	if cached, ok := presetCache[name]; ok {
		return cached
	}

	path, ok := presetFiles[name]
	if !ok {
		return nil
	}

	data, err := presetFS.ReadFile(path)
	if err != nil {
		return nil
	}

	var config models.RuleConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil
	}

	presetCache[name] = &config
	return &config
}

// ListPresetNames returns the names of all available presets, sorted
func ListPresetNames() []string {
	names := make([]string, 0, len(presetFiles))
	for name := range presetFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MustGetPreset returns a preset or panics (for tests)
func MustGetPreset(name string) *models.RuleConfig {
	p := GetPreset(name)
	if p == nil {
		panic(fmt.Sprintf("preset %q not found", name))
	}
	return p
}

// LoadRules reads a rule file. Unknown fields are rejected.
func LoadRules(path string) (*models.RuleConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var config models.RuleConfig
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse rules %s: %w", path, err)
	}
	return &config, nil
}
