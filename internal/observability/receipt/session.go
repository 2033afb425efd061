package receipt

import (
	"bufio"
	"context"
	"os"
	"time"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/policyforge/wspolicy/internal/observability"
)

// MaxErrorLength is the maximum length for error strings in receipts.
const MaxErrorLength = 2048

// Session tracks command execution
type Session struct {
	ctx     context.Context
	start   time.Time
	command string
	args    []string
}

// Start session
func Start(ctx context.Context, cmd string, args []string) *Session {
	return &Session{
		ctx:     ctx,
		start:   time.Now(),
		command: cmd,
		args:    args,
	}
}

// Option configures receipt
type Option func(*Receipt)

// WithInputs records the given files with their SHA-256 digests. Files that
// cannot be read are recorded without a digest.
func WithInputs(paths ...string) Option {
	return func(r *Receipt) {
		for _, path := range paths {
			ref := InputRef{Path: path}
			if h, err := fileDigest(path); err == nil {
				ref.Digest = h.String()
			}
			r.Inputs = append(r.Inputs, ref)
		}
	}
}

// WithNormalization option
func WithNormalization(policies []PolicyResult) Option {
	return func(r *Receipt) {
		r.Normalization = &NormalizationSummary{Policies: policies}
	}
}

// WithDiff option
func WithDiff(critical, moderate, safe int, summary string) Option {
	return func(r *Receipt) {
		r.Diff = &DiffSummary{
			Critical: critical,
			Moderate: moderate,
			Safe:     safe,
			Summary:  summary,
		}
	}
}

// WithCheck option
func WithCheck(preset, status string, hits []RuleHit) Option {
	return func(r *Receipt) {
		r.Check = &CheckSummary{
			Preset:   preset,
			Status:   status,
			RulesHit: hits,
		}
	}
}

// Finish and write receipt
func (s *Session) Finish(err error, opts ...Option) error {
	w := From(s.ctx)
	if w == nil {
		// No writer configured, receipts disabled
		return nil
	}

	redactedArgs, wasRedacted := RedactArgs(s.args)

	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          observability.OpID(s.ctx),
		TsStart:       s.start.Format(time.RFC3339Nano),
		TsEnd:         time.Now().Format(time.RFC3339Nano),
		Command:       s.command,
		Args:          redactedArgs,
		ArgsRedacted:  wasRedacted,
	}

	if err != nil {
		r.Result = Result{
			Status: "fail",
			Error:  truncateError(err.Error()),
		}
	} else {
		r.Result = Result{
			Status: "success",
		}
	}

	for _, opt := range opts {
		opt(&r)
	}

	return w.Write(r)
}

func fileDigest(path string) (v1.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return v1.Hash{}, err
	}
	defer f.Close()

	h, _, err := v1.SHA256(bufio.NewReader(f))
	return h, err
}

func truncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	return s[:MaxErrorLength-3] + "..."
}
