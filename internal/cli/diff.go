package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/policyforge/wspolicy/internal/differ"
	"github.com/policyforge/wspolicy/internal/document"
	"github.com/policyforge/wspolicy/internal/observability/receipt"
	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"github.com/policyforge/wspolicy/internal/translator"
	"github.com/policyforge/wspolicy/internal/wspolicy"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// diffCmd compares two versions of a policy document
var diffCmd = &cobra.Command{
	Use:   "diff <old-file> <new-file>",
	Short: "Explain how normalized policies changed between two documents",
	Long: `Normalizes the policies of two policy documents and reports, in plain
English, which alternatives and assertions were added, removed or changed.

Alternatives are compared as a set, so reordering them is not a change.
Policies are paired by id; when both files hold a single policy those two are
compared. --old-uri and --new-uri pick the policies explicitly. Documents
given with --include are loaded on both sides to resolve references and are
not compared themselves.

Exit status is 1 when a change at or above --fail-on is found.

Examples:
  wspolicy diff v1/transport.yaml v2/transport.yaml
  wspolicy diff old.yaml new.yaml --fail-on=critical --format=json
  wspolicy diff v1/transport.yaml v2/transport.yaml --include common.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

var (
	diffOldURIFlag   string
	diffNewURIFlag   string
	diffFormatFlag   string
	diffFailOnFlag   string
	diffLimitFlag    int
	diffOptionalFlag bool
	diffIncludeFlag  []string
)

func init() {
	diffCmd.Flags().StringVar(&diffOldURIFlag, "old-uri", "", "Policy URI to compare in the old document")
	diffCmd.Flags().StringVar(&diffNewURIFlag, "new-uri", "", "Policy URI to compare in the new document")
	diffCmd.Flags().StringVar(&diffFormatFlag, "format", "text", "Output format: text or json")
	diffCmd.Flags().StringVar(&diffFailOnFlag, "fail-on", "info", "Severity threshold for exit status 1: critical, moderate, or info")
	diffCmd.Flags().IntVar(&diffLimitFlag, "alternative-limit", 0, "Fail when a policy expands to more alternatives (0 = unlimited)")
	diffCmd.Flags().BoolVar(&diffOptionalFlag, "expand-optional", false, "Expand wsp:Optional assertions into a choice")
	diffCmd.Flags().StringSliceVar(&diffIncludeFlag, "include", nil, "Shared policy documents loaded on both sides (repeatable)")
}

// GetDiffCmd returns the diff command
func GetDiffCmd() *cobra.Command {
	return diffCmd
}

// policyPair is a policy on either side of a diff. Old or New is nil when
// the policy exists on one side only.
type policyPair struct {
	Label string
	Old   *sourcemodel.PolicySourceModel
	New   *sourcemodel.PolicySourceModel
}

func runDiff(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "wspolicy diff", os.Args[1:])
	var report *DiffReport
	defer func() {
		opts := []receipt.Option{receipt.WithInputs(args...)}
		if report != nil {
			opts = append(opts, receipt.WithDiff(report.Summary.Critical, report.Summary.Moderate, report.Summary.Info, report.Outcome))
		}
		_ = sess.Finish(err, opts...)
	}()

	ctx, done := startCommand(ctx, "diff",
		attribute.String("wspolicy.old", args[0]),
		attribute.String("wspolicy.new", args[1]))
	status := "fail"
	defer func() { done(err, status) }()

	failOn, err := ParseFailOnLevel(diffFailOnFlag)
	if err != nil {
		return err
	}
	if diffFormatFlag != "text" && diffFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", diffFormatFlag)
	}

	shared, err := includedURIs(diffIncludeFlag)
	if err != nil {
		return err
	}
	oldReg, err := loadDocuments(ctx, append([]string{args[0]}, diffIncludeFlag...))
	if err != nil {
		return err
	}
	newReg, err := loadDocuments(ctx, append([]string{args[1]}, diffIncludeFlag...))
	if err != nil {
		return err
	}
	pairs, err := pairModels(oldReg, newReg, diffOldURIFlag, diffNewURIFlag, shared)
	if err != nil {
		return err
	}

	t, err := newTranslator(ctx, translatorOptions{alternativeLimit: diffLimitFlag, expandOptional: diffOptionalFlag})
	if err != nil {
		return err
	}
	diffs, err := comparePairs(ctx, t, pairs)
	if err != nil {
		return err
	}

	report = BuildDiffReport(args[0], args[1], diffs, failOn)
	if diffFormatFlag == "json" {
		data, jerr := FormatDiffJSON(report)
		if jerr != nil {
			return jerr
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprint(cmd.OutOrStdout(), FormatDiffText(report))
	}

	if report.Outcome == "FAIL" {
		status = "changes"
		return &ExitError{Code: exitFindings}
	}
	status = "success"
	return nil
}

// includedURIs returns the URIs of every policy in the shared documents.
func includedURIs(paths []string) (map[string]bool, error) {
	uris := make(map[string]bool)
	for _, path := range paths {
		models, err := document.Load(path)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			uris[m.URI()] = true
		}
	}
	return uris, nil
}

// comparedModels returns the registered models except those under shared URIs.
func comparedModels(reg *sourcemodel.Context, shared map[string]bool) []*sourcemodel.PolicySourceModel {
	var out []*sourcemodel.PolicySourceModel
	for _, m := range reg.Models() {
		if !shared[m.URI()] {
			out = append(out, m)
		}
	}
	return out
}

// pairModels decides which old policy is compared with which new one.
// Policies under shared URIs are never paired.
func pairModels(oldReg, newReg *sourcemodel.Context, oldURI, newURI string, shared map[string]bool) ([]policyPair, error) {
	if oldURI != "" || newURI != "" {
		o, err := singleModel(oldReg, oldURI, "--old-uri", shared)
		if err != nil {
			return nil, err
		}
		n, err := singleModel(newReg, newURI, "--new-uri", shared)
		if err != nil {
			return nil, err
		}
		return []policyPair{{Label: pairLabel(o, n), Old: o, New: n}}, nil
	}

	olds, news := comparedModels(oldReg, shared), comparedModels(newReg, shared)
	if len(olds) == 1 && len(news) == 1 {
		return []policyPair{{Label: pairLabel(olds[0], news[0]), Old: olds[0], New: news[0]}}, nil
	}

	byID := make(map[string]*sourcemodel.PolicySourceModel, len(news))
	for _, m := range news {
		if _, dup := byID[m.ID()]; dup {
			return nil, fmt.Errorf("new document has more than one policy with id %q; use --old-uri and --new-uri", m.ID())
		}
		byID[m.ID()] = m
	}
	var pairs []policyPair
	seen := make(map[string]bool, len(olds))
	for _, m := range olds {
		if seen[m.ID()] {
			return nil, fmt.Errorf("old document has more than one policy with id %q; use --old-uri and --new-uri", m.ID())
		}
		seen[m.ID()] = true
		n := byID[m.ID()]
		pairs = append(pairs, policyPair{Label: pairLabel(m, n), Old: m, New: n})
	}
	for _, m := range news {
		if !seen[m.ID()] {
			pairs = append(pairs, policyPair{Label: pairLabel(nil, m), New: m})
		}
	}
	return pairs, nil
}

func singleModel(reg *sourcemodel.Context, uri, flag string, shared map[string]bool) (*sourcemodel.PolicySourceModel, error) {
	if uri != "" {
		models, err := selectModels(reg, uri)
		if err != nil {
			return nil, err
		}
		return models[0], nil
	}
	models := comparedModels(reg, shared)
	if len(models) != 1 {
		return nil, fmt.Errorf("document holds %d policies; pick one with %s", len(models), flag)
	}
	return models[0], nil
}

func pairLabel(o, n *sourcemodel.PolicySourceModel) string {
	for _, m := range []*sourcemodel.PolicySourceModel{o, n} {
		if m != nil && m.ID() != "" {
			return "#" + m.ID()
		}
	}
	for _, m := range []*sourcemodel.PolicySourceModel{o, n} {
		if m != nil {
			return m.URI()
		}
	}
	return "policy"
}

// comparePairs normalizes both sides of every pair and diffs them.
func comparePairs(ctx context.Context, t *translator.Translator, pairs []policyPair) ([]PolicyDiff, error) {
	translate := func(m *sourcemodel.PolicySourceModel) (*wspolicy.Policy, error) {
		if m == nil {
			return nil, nil
		}
		p, err := t.Translate(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize %s: %w", m.URI(), err)
		}
		return p, nil
	}

	out := make([]PolicyDiff, 0, len(pairs))
	for _, pair := range pairs {
		oldP, err := translate(pair.Old)
		if err != nil {
			return nil, err
		}
		newP, err := translate(pair.New)
		if err != nil {
			return nil, err
		}

		d := PolicyDiff{Label: pair.Label}
		if pair.Old != nil {
			d.OldURI = pair.Old.URI()
		}
		if pair.New != nil {
			d.NewURI = pair.New.URI()
		}
		switch {
		case oldP == nil:
			d.Result = differ.Added(newP)
		case newP == nil:
			d.Result = differ.Removed(oldP)
		default:
			d.Result, err = differ.Compare(oldP, newP)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return out, nil
}
