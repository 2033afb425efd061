package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/policyforge/wspolicy/internal/normalize"
	"github.com/policyforge/wspolicy/internal/observability/receipt"
	"github.com/policyforge/wspolicy/internal/wspolicy"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>... [--uri <uri>]",
	Short: "Print policies in normal form",
	Long: `Loads every policy document, resolves policy references across all of
them and prints each policy in normal form.

A policy that admits nothing is reported as "null"; a policy with a single
empty alternative, which admits everything, is reported as "empty".

Examples:
  # Normalize every policy in two files
  wspolicy normalize transport.yaml common.yaml

  # Normalize one policy and print JSON
  wspolicy normalize transport.yaml --uri 'transport.yaml#secure' --format=json

  # Treat wsp:Optional assertions as a choice and stop at 256 alternatives
  wspolicy normalize transport.yaml --expand-optional --alternative-limit=256`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNormalize,
}

var (
	normalizeURIFlag         string
	normalizeFormatFlag      string
	normalizeLimitFlag       int
	normalizeOptionalFlag    bool
	normalizeConcurrencyFlag int
)

func init() {
	normalizeCmd.Flags().StringVar(&normalizeURIFlag, "uri", "", "Only normalize the policy registered under this URI")
	normalizeCmd.Flags().StringVar(&normalizeFormatFlag, "format", "text", "Output format: text or json")
	normalizeCmd.Flags().IntVar(&normalizeLimitFlag, "alternative-limit", 0, "Fail when a policy expands to more alternatives (0 = unlimited)")
	normalizeCmd.Flags().BoolVar(&normalizeOptionalFlag, "expand-optional", false, "Expand wsp:Optional assertions into a choice")
	normalizeCmd.Flags().IntVar(&normalizeConcurrencyFlag, "concurrency", 0, "Policies normalized in parallel (0 = GOMAXPROCS)")
}

// GetNormalizeCmd export
func GetNormalizeCmd() *cobra.Command {
	return normalizeCmd
}

// normalizedPolicy is one entry of the JSON output.
type normalizedPolicy struct {
	URI    string           `json:"uri"`
	Digest string           `json:"digest"`
	Policy *wspolicy.Policy `json:"policy"`
}

func runNormalize(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "wspolicy normalize", os.Args[1:])
	var results []normalize.Result
	defer func() {
		opts := []receipt.Option{receipt.WithInputs(args...)}
		if len(results) > 0 {
			opts = append(opts, receipt.WithNormalization(receiptPolicies(results)))
		}
		_ = sess.Finish(err, opts...)
	}()

	ctx, done := startCommand(ctx, "normalize", attribute.Int("wspolicy.files", len(args)))
	status := "fail"
	defer func() { done(err, status) }()

	if normalizeFormatFlag != "text" && normalizeFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", normalizeFormatFlag)
	}

	results, err = normalizeFiles(ctx, args, normalizeURIFlag, translatorOptions{
		alternativeLimit: normalizeLimitFlag,
		expandOptional:   normalizeOptionalFlag,
	}, normalizeConcurrencyFlag)
	if err != nil {
		return err
	}

	if err := writeNormalized(cmd.OutOrStdout(), results, normalizeFormatFlag); err != nil {
		return err
	}
	status = "success"
	return nil
}

// normalizeFiles loads the documents and normalizes the selected policies.
func normalizeFiles(ctx context.Context, paths []string, uri string, topts translatorOptions, concurrency int) ([]normalize.Result, error) {
	reg, err := loadDocuments(ctx, paths)
	if err != nil {
		return nil, err
	}
	models, err := selectModels(reg, uri)
	if err != nil {
		return nil, err
	}
	t, err := newTranslator(ctx, topts)
	if err != nil {
		return nil, err
	}
	return normalize.Run(ctx, t, models, normalize.Options{Concurrency: concurrency})
}

func writeNormalized(w io.Writer, results []normalize.Result, format string) error {
	if format == "json" {
		out := make([]normalizedPolicy, 0, len(results))
		for _, r := range results {
			out = append(out, normalizedPolicy{URI: r.URI, Digest: r.Digest, Policy: r.Policy})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s== %s%s (%s, %d alternatives, %s)\n", colorBold, r.URI, colorReset, r.Policy.Kind(), r.Policy.Len(), r.Digest)
		if _, err := fmt.Fprintln(w, r.Policy.String()); err != nil {
			return err
		}
	}
	return nil
}

func receiptPolicies(results []normalize.Result) []receipt.PolicyResult {
	out := make([]receipt.PolicyResult, 0, len(results))
	for _, r := range results {
		out = append(out, receipt.PolicyResult{
			URI:          r.URI,
			ID:           r.Policy.ID(),
			Kind:         r.Policy.Kind().String(),
			Alternatives: r.Policy.Len(),
			Digest:       r.Digest,
		})
	}
	return out
}
