package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/policyforge/wspolicy/internal/document"
	"github.com/policyforge/wspolicy/internal/observability/logging"
	otelobs "github.com/policyforge/wspolicy/internal/observability/otel"
	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"github.com/policyforge/wspolicy/internal/translator"
	"go.opentelemetry.io/otel/attribute"
)

// startCommand starts the span for a CLI command and emits its start event.
// The returned func emits the completion event and ends the span.
func startCommand(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error, status string)) {
	log := logging.From(ctx)
	start := time.Now()

	attrs = append(attrs, attribute.String("wspolicy.command", name))
	ctx, finish := otelobs.StartSpan(ctx, "wspolicy."+name, attrs...)
	log.Event(ctx, name+".start", nil)

	return ctx, func(err error, status string) {
		fields := map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      status,
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		log.Event(ctx, name+".complete", fields)
		finish(err, attribute.String("wspolicy.result", status))
	}
}

// loadDocuments loads, registers and expands every policy document.
func loadDocuments(ctx context.Context, paths []string) (*sourcemodel.Context, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no policy documents given")
	}
	reg, err := document.LoadFiles(paths)
	if err != nil {
		return nil, err
	}
	logging.From(ctx).Debug("cli", "loaded policy documents", "files", len(paths), "policies", reg.Len())
	return reg, nil
}

// selectModels returns the model registered under uri, or every model in
// registration order when uri is empty.
func selectModels(reg *sourcemodel.Context, uri string) ([]*sourcemodel.PolicySourceModel, error) {
	if uri == "" {
		return reg.Models(), nil
	}
	m := reg.RetrieveModel(uri)
	if m == nil {
		return nil, fmt.Errorf("no policy registered under %q (known: %s)", uri, strings.Join(reg.URIs(), ", "))
	}
	return []*sourcemodel.PolicySourceModel{m}, nil
}

// translatorOptions holds the flags shared by commands that normalize.
type translatorOptions struct {
	alternativeLimit int
	expandOptional   bool
}

func newTranslator(ctx context.Context, o translatorOptions) (*translator.Translator, error) {
	opts := []translator.Option{
		translator.WithLogger(logging.From(ctx)),
		translator.WithAlternativeLimit(o.alternativeLimit),
	}
	if o.expandOptional {
		opts = append(opts, translator.WithOptionalExpansion())
	}
	return translator.New(opts...)
}
