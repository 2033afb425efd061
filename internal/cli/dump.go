package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/policyforge/wspolicy/internal/document"
	"github.com/policyforge/wspolicy/internal/observability/receipt"
	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <file>... [--uri <uri>]",
	Short: "Print policy source trees after reference expansion",
	Long: `Loads every policy document, resolves policy references and prints the
source tree of each policy without normalizing it.

With --format=yaml the policies are written back as policy documents, which
is useful for converting "prefix:local" names to "{namespace}local" form.

Examples:
  wspolicy dump transport.yaml common.yaml
  wspolicy dump transport.yaml --uri 'transport.yaml#secure' --format=yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDump,
}

var (
	dumpURIFlag    string
	dumpFormatFlag string
)

func init() {
	dumpCmd.Flags().StringVar(&dumpURIFlag, "uri", "", "Only print the policy registered under this URI")
	dumpCmd.Flags().StringVar(&dumpFormatFlag, "format", "text", "Output format: text or yaml")
}

// GetDumpCmd export
func GetDumpCmd() *cobra.Command {
	return dumpCmd
}

func runDump(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "wspolicy dump", os.Args[1:])
	defer func() {
		_ = sess.Finish(err, receipt.WithInputs(args...))
	}()

	ctx, done := startCommand(ctx, "dump", attribute.Int("wspolicy.files", len(args)))
	status := "fail"
	defer func() { done(err, status) }()

	if dumpFormatFlag != "text" && dumpFormatFlag != "yaml" {
		return fmt.Errorf("invalid format: %s (use text or yaml)", dumpFormatFlag)
	}

	reg, err := loadDocuments(ctx, args)
	if err != nil {
		return err
	}
	models, err := selectModels(reg, dumpURIFlag)
	if err != nil {
		return err
	}

	if err := writeDump(cmd.OutOrStdout(), models, dumpFormatFlag); err != nil {
		return err
	}
	status = "success"
	return nil
}

func writeDump(w io.Writer, models []*sourcemodel.PolicySourceModel, format string) error {
	if format == "yaml" {
		return document.Encode(w, models...)
	}
	for i, m := range models {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s== %s%s\n", colorBold, m.URI(), colorReset)
		if _, err := fmt.Fprintln(w, m.String()); err != nil {
			return err
		}
	}
	return nil
}
