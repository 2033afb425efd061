package wspolicy

import "encoding/json"

type policyJSON struct {
	Namespace    string            `json:"namespace"`
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name,omitempty"`
	Kind         string            `json:"kind"`
	Alternatives [][]assertionJSON `json:"alternatives"`
}

type assertionJSON struct {
	Name         string            `json:"name"`
	Value        string            `json:"value,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Optional     bool              `json:"optional,omitempty"`
	Ignorable    bool              `json:"ignorable,omitempty"`
	Parameters   []assertionJSON   `json:"parameters,omitempty"`
	NestedPolicy *[]assertionJSON  `json:"nested_policy,omitempty"`
}

// MarshalJSON renders the policy with alternatives and assertions in their
// normalized order. Attribute maps are keyed by "{ns}local".
func (p *Policy) MarshalJSON() ([]byte, error) {
	out := policyJSON{
		Namespace:    string(p.version),
		ID:           p.id,
		Name:         p.name,
		Kind:         p.kind.String(),
		Alternatives: make([][]assertionJSON, 0, len(p.alternatives)),
	}
	for _, alt := range p.alternatives {
		out.Alternatives = append(out.Alternatives, assertionSetJSON(alt))
	}
	return json.Marshal(out)
}

// MarshalJSON renders the alternative as an array of assertions.
func (s *AssertionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(assertionSetJSON(s))
}

func assertionSetJSON(s *AssertionSet) []assertionJSON {
	out := make([]assertionJSON, 0, len(s.assertions))
	for _, a := range s.assertions {
		out = append(out, toAssertionJSON(a))
	}
	return out
}

func toAssertionJSON(a Assertion) assertionJSON {
	j := assertionJSON{
		Name:      a.Name().String(),
		Value:     a.Value(),
		Optional:  a.IsOptional(),
		Ignorable: a.IsIgnorable(),
	}
	if attrs := a.Attributes(); len(attrs) > 0 {
		j.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			j.Attributes[k.String()] = v
		}
	}
	for _, p := range a.Parameters() {
		j.Parameters = append(j.Parameters, toAssertionJSON(p))
	}
	if n := a.NestedPolicy(); n != nil {
		nested := assertionSetJSON(n.alternative)
		j.NestedPolicy = &nested
	}
	return j
}
