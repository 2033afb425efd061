// Package translator normalizes a policy source model into a wspolicy.Policy:
// references are inlined, ALL and nested POLICY operators are dissolved and
// every EXACTLY_ONE choice is expanded into separate alternatives.
//
// Normalization can grow exponentially with the number of nested choices;
// WithAlternativeLimit bounds it.
package translator

import (
	"context"
	"fmt"

	"github.com/policyforge/wspolicy/internal/observability/logging"
	otelobs "github.com/policyforge/wspolicy/internal/observability/otel"
	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"github.com/policyforge/wspolicy/internal/wspolicy"
	"go.opentelemetry.io/otel/attribute"
)

const component = "translator"

// Translator holds the assertion creator registry. It is immutable after New
// and safe for concurrent use.
type Translator struct {
	creators       map[string]AssertionCreator
	defaultCreator AssertionCreator
	limit          int
	expandOptional bool
}

type config struct {
	creators       []AssertionCreator
	defaultCreator AssertionCreator
	limit          int
	expandOptional bool
	logger         logging.Logger
}

// Option configures a Translator.
type Option func(*config)

// WithCreators registers domain assertion creators.
func WithCreators(creators ...AssertionCreator) Option {
	return func(c *config) {
		c.creators = append(c.creators, creators...)
	}
}

// WithDefaultCreator replaces the creator used for unclaimed namespaces.
func WithDefaultCreator(creator AssertionCreator) Option {
	return func(c *config) {
		c.defaultCreator = creator
	}
}

// WithAlternativeLimit fails translation once more than n alternatives would
// be produced at any level. Zero means no limit.
func WithAlternativeLimit(n int) Option {
	return func(c *config) {
		c.limit = n
	}
}

// WithOptionalExpansion rewrites every wsp:Optional assertion A into
// ExactlyOne{All{A}, All{}} and drops the Optional marker from A.
func WithOptionalExpansion() Option {
	return func(c *config) {
		c.expandOptional = true
	}
}

// WithLogger sets the logger used while building the registry.
func WithLogger(l logging.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New builds a translator. Registering a creator for an empty namespace, or
// two creators for the same namespace, is an ErrConfiguration error.
func New(opts ...Option) (*Translator, error) {
	cfg := config{defaultCreator: DefaultCreator{}, logger: logging.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.defaultCreator == nil {
		return nil, &TranslationError{Kind: ErrConfiguration, Msg: "default assertion creator must not be nil"}
	}
	if cfg.limit < 0 {
		return nil, &TranslationError{Kind: ErrConfiguration, Msg: fmt.Sprintf("alternative limit must not be negative, got %d", cfg.limit)}
	}

	t := &Translator{
		creators:       make(map[string]AssertionCreator),
		defaultCreator: cfg.defaultCreator,
		limit:          cfg.limit,
		expandOptional: cfg.expandOptional,
	}
	for _, creator := range cfg.creators {
		namespaces := creator.SupportedDomainNamespaces()
		if len(namespaces) == 0 {
			cfg.logger.Warn(component, "assertion creator supports no namespaces, skipping", "creator", fmt.Sprintf("%T", creator))
			continue
		}
		for _, ns := range namespaces {
			if ns == "" {
				err := &TranslationError{Kind: ErrConfiguration, Msg: fmt.Sprintf("assertion creator %T registered for an empty namespace", creator)}
				cfg.logger.Error(component, err.Error())
				return nil, err
			}
			if existing, ok := t.creators[ns]; ok {
				err := &TranslationError{Kind: ErrConfiguration, Msg: fmt.Sprintf("namespace %q claimed by both %T and %T", ns, existing, creator)}
				cfg.logger.Error(component, err.Error())
				return nil, err
			}
			t.creators[ns] = creator
		}
	}
	return t, nil
}

// Namespaces returns the number of namespaces with a domain creator.
func (t *Translator) Namespaces() int { return len(t.creators) }

// Translate normalizes model. The model must be expanded; it is cloned and
// never modified. Any structural problem aborts the whole translation, and so
// does cancelling ctx.
func (t *Translator) Translate(ctx context.Context, model *sourcemodel.PolicySourceModel) (p *wspolicy.Policy, err error) {
	ctx, finish := otelobs.StartSpan(ctx, "wspolicy.translate")
	log := logging.From(ctx)

	defer func() {
		if err != nil {
			finish(err)
			return
		}
		finish(nil,
			attribute.String("wspolicy.policy.kind", p.Kind().String()),
			attribute.Int("wspolicy.policy.alternatives", p.Len()),
		)
	}()

	defer func() {
		if err != nil {
			fields := []any{"error", err.Error()}
			if model != nil {
				fields = append(fields, "policy_id", model.ID(), "policy_uri", model.URI())
			}
			log.Error(component, "policy normalization failed", fields...)
		}
	}()

	if model == nil {
		return nil, structural("policy source model must not be nil")
	}
	if err := checkReferenceCycles(model); err != nil {
		return nil, err
	}

	local := model.Clone()
	s := newRun(t, local.NamespaceVersion())
	alternatives, err := s.createAlternatives(ctx, local)
	if err != nil {
		return nil, err
	}

	version := local.NamespaceVersion()
	switch {
	case len(alternatives) == 0:
		p = wspolicy.NewNullPolicy(version, local.Name(), local.ID())
	case len(alternatives) == 1 && alternatives[0].IsEmpty():
		p = wspolicy.NewEmptyPolicy(version, local.Name(), local.ID())
	default:
		p = wspolicy.NewPolicy(version, local.Name(), local.ID(), alternatives)
	}

	log.Debug(component, "policy normalized", "policy_id", local.ID(), "kind", p.Kind().String(), "alternatives", p.Len())
	return p, nil
}

func structural(format string, args ...any) error {
	return &TranslationError{Kind: ErrStructural, Msg: fmt.Sprintf(format, args...)}
}

// checkReferenceCycles walks resolved references depth-first. A cycle would
// make the work queues below grow forever.
func checkReferenceCycles(model *sourcemodel.PolicySourceModel) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*sourcemodel.PolicySourceModel]int)
	var visit func(m *sourcemodel.PolicySourceModel, path []string) error
	visit = func(m *sourcemodel.PolicySourceModel, path []string) error {
		path = append(path, modelLabel(m))
		switch state[m] {
		case visiting:
			return structural("policy reference cycle: %v", path)
		case done:
			return nil
		}
		state[m] = visiting
		for _, ref := range m.References() {
			if target := ref.ReferencedModel(); target != nil {
				if err := visit(target, path); err != nil {
					return err
				}
			}
		}
		state[m] = done
		return nil
	}
	return visit(model, nil)
}

func modelLabel(m *sourcemodel.PolicySourceModel) string {
	switch {
	case m.URI() != "":
		return m.URI()
	case m.ID() != "":
		return "#" + m.ID()
	default:
		return fmt.Sprintf("%p", m)
	}
}
