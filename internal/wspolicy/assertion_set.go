package wspolicy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/policyforge/wspolicy/internal/sourcemodel"
)

// AssertionSet is one policy alternative. Assertion order is kept exactly as
// produced; nothing is sorted or deduplicated.
type AssertionSet struct {
	assertions []Assertion
}

// NewAssertionSet copies the given assertions into a new set.
func NewAssertionSet(assertions []Assertion) *AssertionSet {
	s := &AssertionSet{assertions: make([]Assertion, len(assertions))}
	copy(s.assertions, assertions)
	return s
}

// Assertions returns a copy of the assertion list.
func (s *AssertionSet) Assertions() []Assertion {
	out := make([]Assertion, len(s.assertions))
	copy(out, s.assertions)
	return out
}

// Len returns the number of assertions.
func (s *AssertionSet) Len() int { return len(s.assertions) }

// IsEmpty reports whether the alternative has no assertions.
func (s *AssertionSet) IsEmpty() bool { return len(s.assertions) == 0 }

// Get returns every assertion with the given name, in order.
func (s *AssertionSet) Get(name sourcemodel.QName) []Assertion {
	var out []Assertion
	for _, a := range s.assertions {
		if a.Name() == name {
			out = append(out, a)
		}
	}
	return out
}

// Contains reports whether an assertion with the given name is present.
func (s *AssertionSet) Contains(name sourcemodel.QName) bool {
	for _, a := range s.assertions {
		if a.Name() == name {
			return true
		}
	}
	return false
}

// Names returns assertion names in order.
func (s *AssertionSet) Names() []sourcemodel.QName {
	out := make([]sourcemodel.QName, len(s.assertions))
	for i, a := range s.assertions {
		out[i] = a.Name()
	}
	return out
}

// Equal compares two alternatives position by position.
func (s *AssertionSet) Equal(o *AssertionSet) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.assertions) != len(o.assertions) {
		return false
	}
	for i := range s.assertions {
		if !AssertionsEqual(s.assertions[i], o.assertions[i]) {
			return false
		}
	}
	return true
}

func (s *AssertionSet) String() string {
	var b strings.Builder
	writeAssertionSet(&b, s, 0)
	return b.String()
}

func writeAssertionSet(b *strings.Builder, s *AssertionSet, indent int) {
	pad := strings.Repeat("  ", indent)
	if s.IsEmpty() {
		fmt.Fprintf(b, "%sassertion set { no assertions }\n", pad)
		return
	}
	fmt.Fprintf(b, "%sassertion set {\n", pad)
	for _, a := range s.assertions {
		writeAssertion(b, a, indent+1)
	}
	fmt.Fprintf(b, "%s}\n", pad)
}

func sortedNames(m map[sourcemodel.QName]string) []sourcemodel.QName {
	names := make([]sourcemodel.QName, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names
}
