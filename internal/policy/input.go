package policy

import "github.com/policyforge/wspolicy/internal/wspolicy"

// BuildInput converts a normalized policy into the CEL input map:
//
//	input.uri
//	input.policy.{namespace, id, name, kind, vocabulary, alternatives}
//
// Each alternative is a list of assertion maps with name, namespace, local,
// value, attributes, optional, ignorable, parameters and nested. nested is
// the nested policy's alternative as a list, or null.
func BuildInput(uri string, p *wspolicy.Policy) map[string]any {
	alts := make([]any, 0, p.Len())
	for _, alt := range p.Alternatives() {
		alts = append(alts, assertionsToList(alt.Assertions()))
	}

	vocab := make([]any, 0)
	for _, name := range p.Vocabulary() {
		vocab = append(vocab, name.String())
	}

	return map[string]any{
		"uri": uri,
		"policy": map[string]any{
			"namespace":    string(p.NamespaceVersion()),
			"id":           p.ID(),
			"name":         p.Name(),
			"kind":         p.Kind().String(),
			"vocabulary":   vocab,
			"alternatives": alts,
		},
	}
}

func assertionsToList(as []wspolicy.Assertion) []any {
	out := make([]any, len(as))
	for i, a := range as {
		out[i] = assertionToMap(a)
	}
	return out
}

// assertionToMap
func assertionToMap(a wspolicy.Assertion) map[string]any {
	attrs := map[string]any{}
	for k, v := range a.Attributes() {
		attrs[k.String()] = v
	}

	var nested any
	if n := a.NestedPolicy(); n != nil {
		nested = assertionsToList(n.Alternative().Assertions())
	}

	return map[string]any{
		"name":       a.Name().String(),
		"namespace":  a.Name().Namespace,
		"local":      a.Name().Local,
		"value":      a.Value(),
		"attributes": attrs,
		"optional":   a.IsOptional(),
		"ignorable":  a.IsIgnorable(),
		"parameters": assertionsToList(a.Parameters()),
		"nested":     nested,
	}
}
