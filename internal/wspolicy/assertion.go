// Package wspolicy holds the normalized form of a WS-Policy expression: a
// Policy made of alternative AssertionSets, each an ordered list of
// assertions.
package wspolicy

import (
	"fmt"
	"strings"

	"github.com/policyforge/wspolicy/internal/sourcemodel"
)

// Assertion is a normalized policy assertion. Domain-specific assertion types
// usually embed *SimpleAssertion and add their own accessors.
type Assertion interface {
	Name() sourcemodel.QName
	Value() string
	Attributes() map[sourcemodel.QName]string
	Attribute(name sourcemodel.QName) (string, bool)
	IsOptional() bool
	IsIgnorable() bool
	IsPrivate() bool
	Parameters() []Assertion
	NestedPolicy() *NestedPolicy
}

// SimpleAssertion is the generic assertion produced for namespaces no domain
// creator claims.
type SimpleAssertion struct {
	data   *sourcemodel.AssertionData
	params []Assertion
	nested *NestedPolicy
}

// NewSimpleAssertion builds an assertion from its source data, parameters
// and an optional nested alternative. The data is copied.
func NewSimpleAssertion(data *sourcemodel.AssertionData, params []Assertion, nested *AssertionSet) (*SimpleAssertion, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: assertion requires data", sourcemodel.ErrInvalidData)
	}
	a := &SimpleAssertion{data: data.Clone()}
	if len(params) > 0 {
		a.params = make([]Assertion, len(params))
		copy(a.params, params)
	}
	if nested != nil {
		a.nested = &NestedPolicy{alternative: nested}
	}
	return a, nil
}

func (a *SimpleAssertion) Name() sourcemodel.QName { return a.data.Name() }

func (a *SimpleAssertion) Value() string { return a.data.Value() }

func (a *SimpleAssertion) Attributes() map[sourcemodel.QName]string { return a.data.Attributes() }

func (a *SimpleAssertion) Attribute(name sourcemodel.QName) (string, bool) {
	return a.data.Attribute(name)
}

func (a *SimpleAssertion) IsOptional() bool { return a.data.IsOptional() }

func (a *SimpleAssertion) IsIgnorable() bool { return a.data.IsIgnorable() }

func (a *SimpleAssertion) IsPrivate() bool { return a.data.IsPrivate() }

// Parameters returns a copy of the parameter list.
func (a *SimpleAssertion) Parameters() []Assertion {
	out := make([]Assertion, len(a.params))
	copy(out, a.params)
	return out
}

// NestedPolicy returns the nested policy or nil.
func (a *SimpleAssertion) NestedPolicy() *NestedPolicy { return a.nested }

func (a *SimpleAssertion) String() string {
	var b strings.Builder
	writeAssertion(&b, a, 0)
	return b.String()
}

// NestedPolicy is the single normalized alternative nested inside an assertion.
type NestedPolicy struct {
	alternative *AssertionSet
}

// Alternative returns the nested alternative.
func (n *NestedPolicy) Alternative() *AssertionSet { return n.alternative }

// AssertionsEqual compares two assertions structurally.
func AssertionsEqual(a, b Assertion) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Name() != b.Name() || a.Value() != b.Value() ||
		a.IsOptional() != b.IsOptional() || a.IsIgnorable() != b.IsIgnorable() {
		return false
	}
	aa, ba := a.Attributes(), b.Attributes()
	if len(aa) != len(ba) {
		return false
	}
	for k, v := range aa {
		if bv, ok := ba[k]; !ok || bv != v {
			return false
		}
	}
	ap, bp := a.Parameters(), b.Parameters()
	if len(ap) != len(bp) {
		return false
	}
	for i := range ap {
		if !AssertionsEqual(ap[i], bp[i]) {
			return false
		}
	}
	an, bn := a.NestedPolicy(), b.NestedPolicy()
	if an == nil || bn == nil {
		return an == nil && bn == nil
	}
	return an.alternative.Equal(bn.alternative)
}

func writeAssertion(b *strings.Builder, a Assertion, indent int) {
	pad := strings.Repeat("  ", indent)
	fmt.Fprintf(b, "%sassertion {\n", pad)
	fmt.Fprintf(b, "%s  name = '%s'\n", pad, a.Name())
	if v := a.Value(); v != "" {
		fmt.Fprintf(b, "%s  value = '%s'\n", pad, v)
	}
	if a.IsOptional() {
		fmt.Fprintf(b, "%s  optional\n", pad)
	}
	if a.IsIgnorable() {
		fmt.Fprintf(b, "%s  ignorable\n", pad)
	}
	for _, k := range sortedNames(a.Attributes()) {
		v, _ := a.Attribute(k)
		fmt.Fprintf(b, "%s  attribute '%s' = '%s'\n", pad, k, v)
	}
	for _, p := range a.Parameters() {
		writeAssertion(b, p, indent+1)
	}
	if n := a.NestedPolicy(); n != nil {
		fmt.Fprintf(b, "%s  nested policy {\n", pad)
		writeAssertionSet(b, n.alternative, indent+2)
		fmt.Fprintf(b, "%s  }\n", pad)
	}
	fmt.Fprintf(b, "%s}\n", pad)
}
