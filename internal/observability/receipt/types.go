// Package receipt writes one audit record per CLI run: what was read, what
// the normalizer produced and how the run ended.
package receipt

// ReceiptSchemaVersion current
const ReceiptSchemaVersion = "1.0"

// Receipt structure
type Receipt struct {
	SchemaVersion string                `json:"schema_version"`
	OpID          string                `json:"op_id"`
	TsStart       string                `json:"ts_start"`
	TsEnd         string                `json:"ts_end"`
	Command       string                `json:"command"`
	Args          []string              `json:"args"`
	ArgsRedacted  bool                  `json:"args_redacted,omitempty"`
	Result        Result                `json:"result"`
	Inputs        []InputRef            `json:"inputs,omitempty"`
	Normalization *NormalizationSummary `json:"normalization,omitempty"`
	Diff          *DiffSummary          `json:"diff,omitempty"`
	Check         *CheckSummary         `json:"check,omitempty"`
}

// Result status
type Result struct {
	Status string `json:"status"` // "success" or "fail"
	Error  string `json:"error,omitempty"`
}

// InputRef is one policy document read by the run.
type InputRef struct {
	Path   string `json:"path"`
	Digest string `json:"digest,omitempty"` // sha256:<hex>
}

// NormalizationSummary lists the normalized policies.
type NormalizationSummary struct {
	Policies []PolicyResult `json:"policies"`
}

// PolicyResult is the outcome of normalizing one source model.
type PolicyResult struct {
	URI          string `json:"uri"`
	ID           string `json:"id,omitempty"`
	Kind         string `json:"kind"` // null|empty|normal
	Alternatives int    `json:"alternatives"`
	Digest       string `json:"digest,omitempty"` // digest of the canonical JSON output
}

// DiffSummary counts changes by severity.
type DiffSummary struct {
	Critical int    `json:"critical"`
	Moderate int    `json:"moderate"`
	Safe     int    `json:"safe"`
	Summary  string `json:"summary,omitempty"`
}

// CheckSummary detail
type CheckSummary struct {
	Preset   string    `json:"preset,omitempty"` // baseline|strict|custom
	Status   string    `json:"status"`           // pass|warn|fail
	RulesHit []RuleHit `json:"rules_hit,omitempty"`
}

// RuleHit detail
type RuleHit struct {
	Name     string `json:"name"`
	Severity string `json:"severity"` // warn|error
	Policy   string `json:"policy,omitempty"`
}
