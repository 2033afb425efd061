package wspolicy

import (
	"fmt"
	"strings"

	"github.com/policyforge/wspolicy/internal/sourcemodel"
)

// Kind distinguishes the two degenerate policies from ordinary ones.
type Kind int

const (
	// KindNull has no alternatives and admits nothing.
	KindNull Kind = iota
	// KindEmpty has a single alternative with no assertions and admits everything.
	KindEmpty
	// KindNormal has at least one non-empty alternative.
	KindNormal
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindEmpty:
		return "empty"
	case KindNormal:
		return "normal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Policy is a normalized policy: a disjunction of assertion sets.
type Policy struct {
	version      sourcemodel.NamespaceVersion
	id           string
	name         string
	kind         Kind
	alternatives []*AssertionSet
}

// NewNullPolicy creates a policy without alternatives.
func NewNullPolicy(version sourcemodel.NamespaceVersion, name, id string) *Policy {
	return &Policy{version: version, name: name, id: id, kind: KindNull}
}

// NewEmptyPolicy creates a policy whose only alternative is empty.
func NewEmptyPolicy(version sourcemodel.NamespaceVersion, name, id string) *Policy {
	return &Policy{
		version:      version,
		name:         name,
		id:           id,
		kind:         KindEmpty,
		alternatives: []*AssertionSet{NewAssertionSet(nil)},
	}
}

// NewPolicy wraps the given alternatives. Zero alternatives yield a null
// policy and a single empty alternative yields an empty policy.
func NewPolicy(version sourcemodel.NamespaceVersion, name, id string, alternatives []*AssertionSet) *Policy {
	switch {
	case len(alternatives) == 0:
		return NewNullPolicy(version, name, id)
	case len(alternatives) == 1 && alternatives[0].IsEmpty():
		return NewEmptyPolicy(version, name, id)
	}
	p := &Policy{version: version, name: name, id: id, kind: KindNormal}
	p.alternatives = make([]*AssertionSet, len(alternatives))
	copy(p.alternatives, alternatives)
	return p
}

// NamespaceVersion returns the WS-Policy version of the source model.
func (p *Policy) NamespaceVersion() sourcemodel.NamespaceVersion { return p.version }

// ID returns the policy id.
func (p *Policy) ID() string { return p.id }

// Name returns the policy name.
func (p *Policy) Name() string { return p.name }

// Kind returns the policy kind.
func (p *Policy) Kind() Kind { return p.kind }

// IsNull reports whether the policy has no alternatives.
func (p *Policy) IsNull() bool { return p.kind == KindNull }

// IsEmpty reports whether the policy's only alternative is empty.
func (p *Policy) IsEmpty() bool { return p.kind == KindEmpty }

// Alternatives returns a copy of the alternative list.
func (p *Policy) Alternatives() []*AssertionSet {
	out := make([]*AssertionSet, len(p.alternatives))
	copy(out, p.alternatives)
	return out
}

// Len returns the number of alternatives.
func (p *Policy) Len() int { return len(p.alternatives) }

// Contains reports whether any alternative holds an assertion with the name.
func (p *Policy) Contains(name sourcemodel.QName) bool {
	for _, alt := range p.alternatives {
		if alt.Contains(name) {
			return true
		}
	}
	return false
}

// Vocabulary returns the distinct top-level assertion names in first-seen order.
func (p *Policy) Vocabulary() []sourcemodel.QName {
	seen := make(map[sourcemodel.QName]bool)
	var out []sourcemodel.QName
	for _, alt := range p.alternatives {
		for _, name := range alt.Names() {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// Equal compares kind, identity and alternatives. A null policy never equals
// an empty one.
func (p *Policy) Equal(o *Policy) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.kind != o.kind || p.version != o.version || p.id != o.id || p.name != o.name ||
		len(p.alternatives) != len(o.alternatives) {
		return false
	}
	for i := range p.alternatives {
		if !p.alternatives[i].Equal(o.alternatives[i]) {
			return false
		}
	}
	return true
}

func (p *Policy) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Policy {\n")
	fmt.Fprintf(&b, "  namespace version = '%s'\n", p.version.ShortName())
	fmt.Fprintf(&b, "  id = '%s'\n", p.id)
	fmt.Fprintf(&b, "  name = '%s'\n", p.name)
	fmt.Fprintf(&b, "  kind = '%s'\n", p.kind)
	if vocab := p.Vocabulary(); len(vocab) > 0 {
		fmt.Fprintf(&b, "  vocabulary {\n")
		for i, name := range vocab {
			fmt.Fprintf(&b, "    %d. entry = '%s'\n", i+1, name)
		}
		fmt.Fprintf(&b, "  }\n")
	}
	for _, alt := range p.alternatives {
		writeAssertionSet(&b, alt, 1)
	}
	b.WriteString("}")
	return b.String()
}
