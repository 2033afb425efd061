// Package cli implements the wspolicy command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/policyforge/wspolicy/internal/observability"
	"github.com/policyforge/wspolicy/internal/observability/logging"
	otelobs "github.com/policyforge/wspolicy/internal/observability/otel"
	"github.com/policyforge/wspolicy/internal/observability/receipt"
	"github.com/policyforge/wspolicy/internal/version"
	"github.com/spf13/cobra"
)

// ANSI color codes
const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorReset  = "\033[0m"
)

// Exit codes: 0 success, 1 changes detected or check failed, 2 error.
const (
	exitFindings = 1
	exitError    = 2
)

// ExitError ends the process with Code without printing anything further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

var rootCmd = &cobra.Command{
	Use:   "wspolicy",
	Short: "Normalize and inspect WS-Policy expressions",
	Long: `wspolicy reads WS-Policy expressions written as YAML policy documents,
resolves policy references and rewrites each policy into normal form: a list
of alternatives, each a flat list of assertions.`,
	Version:           version.Get().String(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupObservability,
}

var (
	logFormatFlag       string
	logLevelFlag        string
	logOutputFlag       string
	otelFlag            bool
	otelEndpointFlag    string
	otelProtocolFlag    string
	otelInsecureFlag    bool
	otelSampleRatioFlag float64
	receiptFlag         string
	receiptModeFlag     string
)

// cleanups run after the command finishes, whether or not it failed.
var cleanups []func()

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormatFlag, "log-format", logging.FormatPretty, "Log format: pretty or jsonl")
	pf.StringVar(&logLevelFlag, "log-level", logging.LevelInfo, "Minimum log level: debug, info, warn or error")
	pf.StringVar(&logOutputFlag, "log-output", "stderr", "Log destination: stderr or a file path")
	pf.BoolVar(&otelFlag, "otel", false, "Export traces over OTLP")
	pf.StringVar(&otelEndpointFlag, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelProtocolFlag, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecureFlag, "otel-insecure", false, "Allow OTLP without TLS")
	pf.Float64Var(&otelSampleRatioFlag, "otel-sample-ratio", 1.0, "Trace sampling ratio between 0 and 1")
	pf.StringVar(&receiptFlag, "receipt", "", "Write a JSON receipt of this run to the given path")
	pf.StringVar(&receiptModeFlag, "receipt-mode", string(receipt.ModeOverwrite), "Receipt write mode: overwrite or append")

	rootCmd.AddCommand(GetNormalizeCmd())
	rootCmd.AddCommand(GetDumpCmd())
	rootCmd.AddCommand(GetDiffCmd())
	rootCmd.AddCommand(GetCheckCmd())
	rootCmd.AddCommand(GetRulesCmd())
}

// GetRootCmd export
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// setupObservability stores the op id, logger, tracer handle and receipt
// writer in the command context.
func setupObservability(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.WithOpID(ctx)

	log, err := logging.NewLogger(logging.Config{
		Format: logFormatFlag,
		Level:  logLevelFlag,
		Output: logOutputFlag,
		OpID:   observability.OpID(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	ctx = logging.WithLogger(ctx, log)
	cleanups = append(cleanups, func() { _ = log.Close() })

	if otelFlag {
		cfg := otelobs.DefaultConfig()
		cfg.Enabled = true
		cfg.Endpoint = otelEndpointFlag
		cfg.Protocol = otelProtocolFlag
		cfg.Insecure = otelInsecureFlag
		cfg.SampleRatio = otelSampleRatioFlag
		h, err := otelobs.Init(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		ctx = otelobs.WithHandle(ctx, h)
		cleanups = append(cleanups, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.Shutdown(sctx); err != nil {
				log.Warn("cli", "failed to flush traces", "error", err)
			}
		})
	}

	if receiptFlag != "" {
		w, err := receipt.NewWriter(receiptFlag, receiptModeFlag)
		if err != nil {
			return err
		}
		ctx = receipt.WithWriter(ctx, w)
		cleanups = append(cleanups, func() { _ = w.Close() })
	}

	cmd.SetContext(ctx)
	return nil
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

// Execute runs the root command and exits with its status.
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	runCleanups()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitError
}
