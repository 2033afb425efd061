package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/policyforge/wspolicy/internal/models"
	"github.com/policyforge/wspolicy/internal/observability/logging"
	"github.com/policyforge/wspolicy/internal/observability/receipt"
	"github.com/policyforge/wspolicy/internal/policy"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// checkCmd evaluates rules against normalized policies
var checkCmd = &cobra.Command{
	Use:   "check <file>... [--preset baseline|strict | --rules <file>]",
	Short: "Evaluate CEL rules against normalized policies",
	Long: `Normalizes every selected policy and evaluates a rule set of CEL
expressions against it.

Each rule sees the normalized policy as input.policy with kind, id, name,
namespace, vocabulary and alternatives. The baseline preset only warns; the
strict preset fails when an error-severity rule fails.

Exit status is 1 when the check fails.

Examples:
  # Check with the built-in baseline rules
  wspolicy check transport.yaml

  # Check one policy with strict rules and print JSON
  wspolicy check transport.yaml --uri 'transport.yaml#secure' --preset=strict --format=json

  # Check with custom rules
  wspolicy check transport.yaml --rules ./rules.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

var (
	checkRulesFlag    string
	checkPresetFlag   string
	checkURIFlag      string
	checkFormatFlag   string
	checkLimitFlag    int
	checkOptionalFlag bool
)

func init() {
	checkCmd.Flags().StringVar(&checkRulesFlag, "rules", "", "Path to a rule set YAML file")
	checkCmd.Flags().StringVar(&checkPresetFlag, "preset", "", "Built-in rule set: baseline (warn-only) or strict (default baseline)")
	checkCmd.Flags().StringVar(&checkURIFlag, "uri", "", "Only check the policy registered under this URI")
	checkCmd.Flags().StringVar(&checkFormatFlag, "format", "text", "Output format: text or json")
	checkCmd.Flags().IntVar(&checkLimitFlag, "alternative-limit", 0, "Fail when a policy expands to more alternatives (0 = unlimited)")
	checkCmd.Flags().BoolVar(&checkOptionalFlag, "expand-optional", false, "Expand wsp:Optional assertions into a choice")
}

// GetCheckCmd export
func GetCheckCmd() *cobra.Command {
	return checkCmd
}

func runCheck(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "wspolicy check", os.Args[1:])
	var (
		presetName  string
		checkStatus string
		hits        []receipt.RuleHit
	)
	defer func() {
		opts := []receipt.Option{receipt.WithInputs(args...)}
		if checkStatus != "" {
			opts = append(opts, receipt.WithCheck(presetName, checkStatus, hits))
		}
		_ = sess.Finish(err, opts...)
	}()

	ctx, done := startCommand(ctx, "check",
		attribute.String("wspolicy.preset", checkPresetFlag),
		attribute.String("wspolicy.rules", checkRulesFlag))
	status := "fail"
	defer func() { done(err, status) }()

	if checkFormatFlag != "text" && checkFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", checkFormatFlag)
	}

	config, source, err := loadRuleSet(checkRulesFlag, checkPresetFlag)
	if err != nil {
		return err
	}
	presetName = source.Name
	if source.Type == "file" {
		presetName = "custom"
	}

	engine, err := policy.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create rule engine: %w", err)
	}
	if err := engine.CompileAndValidate(config); err != nil {
		return err
	}

	results, err := normalizeFiles(ctx, args, checkURIFlag, translatorOptions{
		alternativeLimit: checkLimitFlag,
		expandOptional:   checkOptionalFlag,
	}, 0)
	if err != nil {
		return err
	}

	log := logging.From(ctx)
	checks := make([]PolicyCheck, 0, len(results))
	for _, r := range results {
		ruleResults, err := engine.Evaluate(config, r.URI, r.Policy)
		if err != nil {
			return fmt.Errorf("rule evaluation failed for %s: %w", r.URI, err)
		}
		for _, rr := range ruleResults {
			if !rr.Passed {
				hits = append(hits, receipt.RuleHit{Name: rr.RuleName, Severity: string(rr.Severity), Policy: r.URI})
				log.Debug("check", "rule failed", "rule", rr.RuleName, "policy", r.URI, "severity", string(rr.Severity))
			}
		}
		checks = append(checks, PolicyCheck{URI: r.URI, Kind: r.Policy.Kind().String(), Results: ruleResults})
	}

	result := BuildCheckResult(config, source, checks)
	checkStatus = string(result.Outcome)

	if checkFormatFlag == "json" {
		data, jerr := FormatCheckJSON(result)
		if jerr != nil {
			return jerr
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprint(cmd.OutOrStdout(), FormatCheckText(result))
	}

	if result.Outcome == policy.StatusFail {
		return &ExitError{Code: exitFindings}
	}
	status = "success"
	return nil
}

// loadRuleSet loads rules from a file or preset
func loadRuleSet(path, preset string) (*models.RuleConfig, RuleSource, error) {
	if path != "" && preset != "" {
		return nil, RuleSource{}, fmt.Errorf("cannot use both --preset and --rules; choose one")
	}

	if path != "" {
		config, err := policy.LoadRules(path)
		if err != nil {
			return nil, RuleSource{}, err
		}
		if len(config.Rules) == 0 {
			return nil, RuleSource{}, fmt.Errorf("rule set must have at least one rule")
		}
		return config, RuleSource{Type: "file", Name: path}, nil
	}

	if preset == "" {
		preset = "baseline"
	}
	config := policy.GetPreset(preset)
	if config == nil {
		return nil, RuleSource{}, fmt.Errorf("unknown preset: %s (valid: %s)", preset, strings.Join(policy.ListPresetNames(), ", "))
	}
	return config, RuleSource{Type: "preset", Name: preset}, nil
}
