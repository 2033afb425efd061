package translator

import (
	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"github.com/policyforge/wspolicy/internal/wspolicy"
)

// AssertionCreator builds assertions for the namespaces it claims. Domain
// creators receive the default creator as fallback for data they do not
// handle themselves; the default creator receives nil.
type AssertionCreator interface {
	SupportedDomainNamespaces() []string
	CreateAssertion(data *sourcemodel.AssertionData, params []wspolicy.Assertion, nested *wspolicy.AssertionSet, fallback AssertionCreator) (wspolicy.Assertion, error)
}

// CreateFunc is the signature of AssertionCreator.CreateAssertion.
type CreateFunc func(data *sourcemodel.AssertionData, params []wspolicy.Assertion, nested *wspolicy.AssertionSet, fallback AssertionCreator) (wspolicy.Assertion, error)

// NewCreator adapts a function into an AssertionCreator for namespaces.
func NewCreator(namespaces []string, fn CreateFunc) AssertionCreator {
	ns := make([]string, len(namespaces))
	copy(ns, namespaces)
	return &funcCreator{namespaces: ns, fn: fn}
}

type funcCreator struct {
	namespaces []string
	fn         CreateFunc
}

func (c *funcCreator) SupportedDomainNamespaces() []string { return c.namespaces }

func (c *funcCreator) CreateAssertion(data *sourcemodel.AssertionData, params []wspolicy.Assertion, nested *wspolicy.AssertionSet, fallback AssertionCreator) (wspolicy.Assertion, error) {
	return c.fn(data, params, nested, fallback)
}

// DefaultCreator produces *wspolicy.SimpleAssertion values.
type DefaultCreator struct{}

func (DefaultCreator) SupportedDomainNamespaces() []string { return nil }

func (DefaultCreator) CreateAssertion(data *sourcemodel.AssertionData, params []wspolicy.Assertion, nested *wspolicy.AssertionSet, _ AssertionCreator) (wspolicy.Assertion, error) {
	return wspolicy.NewSimpleAssertion(data, params, nested)
}
