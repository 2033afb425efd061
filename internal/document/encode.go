package document

import (
	"fmt"
	"io"

	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"gopkg.in/yaml.v3"
)

// Encode writes models as a multi-document YAML stream that Parse reads back
// into equal models. Names are written in "{namespace}local" form and
// references keep their resolved URIs.
func Encode(w io.Writer, models ...*sourcemodel.PolicySourceModel) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, m := range models {
		doc, err := encodeModel(m)
		if err != nil {
			return err
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode policy %q: %w", m.URI(), err)
		}
	}
	return enc.Close()
}

func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func boolean(b bool) *yaml.Node {
	v := "false"
	if b {
		v = "true"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v}
}

func mapping(pairs ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Content: pairs}
}

func sequence() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode}
}

func encodeModel(m *sourcemodel.PolicySourceModel) (*yaml.Node, error) {
	doc := mapping()
	add := func(k string, v *yaml.Node) {
		doc.Content = append(doc.Content, str(k), v)
	}
	if m.ID() != "" {
		add("id", str(m.ID()))
	}
	if m.Name() != "" {
		add("name", str(m.Name()))
	}
	if m.URI() != "" {
		add("uri", str(m.URI()))
	}
	add("namespace", str(m.NamespaceVersion().ShortName()))

	items, err := encodeChildren(m.NamespaceVersion(), m.Root())
	if err != nil {
		return nil, err
	}
	add("policy", items)
	return doc, nil
}

func encodeChildren(v sourcemodel.NamespaceVersion, n *sourcemodel.ModelNode) (*yaml.Node, error) {
	seq := sequence()
	for _, child := range n.Children() {
		item, err := encodeNode(v, child)
		if err != nil {
			return nil, err
		}
		seq.Content = append(seq.Content, item)
	}
	return seq, nil
}

func encodeNode(v sourcemodel.NamespaceVersion, n *sourcemodel.ModelNode) (*yaml.Node, error) {
	switch n.Type() {
	case sourcemodel.NodePolicy, sourcemodel.NodeAll, sourcemodel.NodeExactlyOne:
		key := map[sourcemodel.NodeType]string{
			sourcemodel.NodePolicy:     keyPolicy,
			sourcemodel.NodeAll:        keyAll,
			sourcemodel.NodeExactlyOne: keyExactlyOne,
		}[n.Type()]
		items, err := encodeChildren(v, n)
		if err != nil {
			return nil, err
		}
		return mapping(str(key), items), nil

	case sourcemodel.NodePolicyReference:
		ref := n.ReferenceData()
		body := mapping(str("uri"), str(ref.URI()))
		if ref.HasDigest() {
			body.Content = append(body.Content,
				str("digest"), str(ref.Digest()),
				str("digest_algorithm"), str(ref.DigestAlgorithm()))
		}
		return mapping(str(keyPolicyReference), body), nil

	case sourcemodel.NodeAssertion, sourcemodel.NodeAssertionParameter:
		data := n.Data()
		body := mapping(str("name"), str(data.Name().String()))
		if data.Value() != "" {
			body.Content = append(body.Content, str("value"), str(data.Value()))
		}

		attrs := mapping()
		for _, name := range data.AttributeNames() {
			if name == v.OptionalAttribute() || name == v.IgnorableAttribute() {
				continue
			}
			value, _ := data.Attribute(name)
			attrs.Content = append(attrs.Content, str(name.String()), str(value))
		}
		if len(attrs.Content) > 0 {
			body.Content = append(body.Content, str("attributes"), attrs)
		}
		if data.IsOptional() {
			body.Content = append(body.Content, str("optional"), boolean(true))
		}
		if data.IsIgnorable() {
			body.Content = append(body.Content, str("ignorable"), boolean(true))
		}
		if n.HasChildren() {
			items, err := encodeChildren(v, n)
			if err != nil {
				return nil, err
			}
			body.Content = append(body.Content, str("content"), items)
		}

		key := keyAssertion
		if n.Type() == sourcemodel.NodeAssertionParameter {
			key = keyParameter
		}
		return mapping(str(key), body), nil
	}
	return nil, fmt.Errorf("cannot encode %s node", n.Type())
}
