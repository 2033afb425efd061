package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/policyforge/wspolicy/internal/models"
	"github.com/policyforge/wspolicy/internal/policy"
	"github.com/spf13/cobra"
)

// rulesCmd group
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Rule set commands",
	Long:  `List, explain and validate the CEL rule sets used by check.`,
}

// rulesListCmd prints the built-in presets
var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in rule presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range policy.ListPresetNames() {
			p := policy.MustGetPreset(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s (mode=%s, %d rules)\n", name, p.Name, p.EffectiveMode(), len(p.Rules))
		}
		return nil
	},
}

// rulesValidateCmd compiles a rule file
var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Compile every rule in a rule set file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, _, err := loadRuleSet(args[0], "")
		if err != nil {
			return err
		}
		engine, err := policy.NewEngine()
		if err != nil {
			return fmt.Errorf("failed to create rule engine: %w", err)
		}
		if err := engine.CompileAndValidate(config); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s✓%s %s: %d rules compiled\n", colorGreen, colorReset, args[0], len(config.Rules))
		return nil
	},
}

// rulesExplainCmd outputs rules with metadata
var rulesExplainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Output rules with control references",
	Long: `Display the rules of a rule set with their severity, control references
and expression in human-readable Markdown or machine-readable JSON.

Example:
  wspolicy rules explain --preset strict
  wspolicy rules explain --preset baseline --json
  wspolicy rules explain --rules ./rules.yaml --output report.md`,
	SilenceUsage: true,
	RunE:         runRulesExplain,
}

var (
	explainPreset string
	explainRules  string
	explainJSON   bool
	explainOutput string
)

func init() {
	rulesExplainCmd.Flags().StringVar(&explainPreset, "preset", "", "Use built-in preset: baseline or strict")
	rulesExplainCmd.Flags().StringVar(&explainRules, "rules", "", "Path to rule set YAML file")
	rulesExplainCmd.Flags().BoolVar(&explainJSON, "json", false, "Output JSON instead of Markdown")
	rulesExplainCmd.Flags().StringVar(&explainOutput, "output", "", "Write output to file (default: stdout)")
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesExplainCmd)
}

// GetRulesCmd export
func GetRulesCmd() *cobra.Command {
	return rulesCmd
}

// ExplainOutput is the JSON output schema
type ExplainOutput struct {
	SchemaVersion string        `json:"schema_version"`
	Source        RuleSource    `json:"source"`
	Mode          string        `json:"mode"`
	GeneratedAt   string        `json:"generated_at"`
	Rules         []ExplainRule `json:"rules"`
}

// ExplainRule is a rule with all metadata for JSON output
type ExplainRule struct {
	Name        string   `json:"name"`
	Severity    string   `json:"severity"`
	Expr        string   `json:"expr"`
	FailureMsg  string   `json:"failure_msg"`
	ControlRefs []string `json:"control_refs"`
}

func runRulesExplain(cmd *cobra.Command, args []string) error {
	config, source, err := loadRuleSet(explainRules, explainPreset)
	if err != nil {
		return err
	}

	var output string
	if explainJSON {
		output, err = generateExplainJSON(config, source)
	} else {
		output, err = generateExplainMarkdown(config, source)
	}
	if err != nil {
		return err
	}

	if explainOutput != "" {
		if err := os.WriteFile(explainOutput, []byte(output), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Output written to %s\n", explainOutput)
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

// generateExplainJSON produces JSON output
func generateExplainJSON(config *models.RuleConfig, source RuleSource) (string, error) {
	output := ExplainOutput{
		SchemaVersion: "1.0",
		Source:        source,
		Mode:          string(config.EffectiveMode()),
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		Rules:         make([]ExplainRule, 0, len(config.Rules)),
	}

	for _, rule := range config.Rules {
		// Ensure nil slices become empty arrays in JSON
		controlRefs := rule.ControlRefs
		if controlRefs == nil {
			controlRefs = []string{}
		}

		output.Rules = append(output.Rules, ExplainRule{
			Name:        rule.Name,
			Severity:    string(rule.EffectiveSeverity()),
			Expr:        rule.Expr,
			FailureMsg:  rule.FailureMsg,
			ControlRefs: controlRefs,
		})
	}

	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return string(jsonBytes) + "\n", nil
}

// generateExplainMarkdown produces Markdown table output
func generateExplainMarkdown(config *models.RuleConfig, source RuleSource) (string, error) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Rules: %s\n\n", config.Name))
	sb.WriteString(fmt.Sprintf("**Source**: %s (`%s`), **Mode**: %s\n\n", source.Type, source.Name, config.EffectiveMode()))

	sb.WriteString("| Rule | Severity | Control Refs | Expr |\n")
	sb.WriteString("|------|----------|--------------|------|\n")

	for _, rule := range config.Rules {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | `%s` |\n",
			rule.Name, rule.EffectiveSeverity(), formatSliceForMD(rule.ControlRefs), truncateExpr(rule.Expr, 120)))
	}

	sb.WriteString("\n")
	return sb.String(), nil
}

// formatSliceForMD formats a string slice for Markdown table cell
func formatSliceForMD(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// truncateExpr shortens CEL expressions for table display
func truncateExpr(expr string, maxLen int) string {
	expr = strings.Join(strings.Fields(expr), " ")

	if len(expr) <= maxLen {
		return expr
	}
	return expr[:maxLen-1] + "…"
}
