// Package normalize translates many policy source models concurrently.
package normalize

import (
	"context"
	"fmt"
	"runtime"

	"github.com/policyforge/wspolicy/internal/canonical"
	"github.com/policyforge/wspolicy/internal/observability/logging"
	otelobs "github.com/policyforge/wspolicy/internal/observability/otel"
	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"github.com/policyforge/wspolicy/internal/wspolicy"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Translator is the part of *translator.Translator used here.
type Translator interface {
	Translate(ctx context.Context, model *sourcemodel.PolicySourceModel) (*wspolicy.Policy, error)
}

// Result is one normalized policy together with its source.
type Result struct {
	URI    string
	Source *sourcemodel.PolicySourceModel
	Policy *wspolicy.Policy
	Digest string // sha256 of the canonical JSON of Policy
}

// Options tunes Run.
type Options struct {
	// Concurrency bounds parallel translations; zero means GOMAXPROCS.
	Concurrency int
}

// Run translates models concurrently and returns results in input order. The
// first failure cancels the remaining work and is returned.
func Run(ctx context.Context, t Translator, models []*sourcemodel.PolicySourceModel, opts Options) (results []Result, err error) {
	ctx, finish := otelobs.StartSpan(ctx, "wspolicy.normalize", attribute.Int("wspolicy.policies", len(models)))
	defer func() { finish(err) }()

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	log := logging.From(ctx)
	results = make([]Result, len(models))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, m := range models {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := t.Translate(gctx, m)
			if err != nil {
				return fmt.Errorf("failed to normalize %s: %w", label(m), err)
			}
			digest, err := canonical.Digest(p)
			if err != nil {
				return fmt.Errorf("failed to digest %s: %w", label(m), err)
			}
			var uri string
			if m != nil {
				uri = m.URI()
			}
			results[i] = Result{URI: uri, Source: m, Policy: p, Digest: digest.String()}
			log.Debug("normalize", "policy normalized", "uri", uri, "kind", p.Kind().String(), "alternatives", p.Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func label(m *sourcemodel.PolicySourceModel) string {
	if m == nil {
		return "nil policy"
	}
	if m.URI() != "" {
		return m.URI()
	}
	if m.ID() != "" {
		return "#" + m.ID()
	}
	return "policy"
}
