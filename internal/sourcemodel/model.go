// Package sourcemodel holds the tree form of a WS-Policy expression before
// normalization: the typed ModelNode tree, its assertion and reference
// payloads, and the context used to resolve references between documents.
package sourcemodel

import (
	"fmt"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

// PolicySourceModel owns a POLICY-rooted tree of ModelNodes.
//
// Models are not safe for concurrent mutation. Concurrent reads, including
// Clone and translation, are safe while nobody mutates the model.
type PolicySourceModel struct {
	version    NamespaceVersion
	id         string
	name       string
	uri        string
	digest     *v1.Hash
	root       *ModelNode
	references []*ModelNode
}

// NewPolicySourceModel creates an empty model with its root POLICY node.
func NewPolicySourceModel(version NamespaceVersion) *PolicySourceModel {
	return NewPolicySourceModelWithID(version, "", "")
}

// NewPolicySourceModelWithID creates an empty model carrying a policy id and name.
func NewPolicySourceModelWithID(version NamespaceVersion, id, name string) *PolicySourceModel {
	if version == "" {
		version = DefaultNamespaceVersion
	}
	m := &PolicySourceModel{version: version, id: id, name: name}
	m.root = &ModelNode{typ: NodePolicy, model: m}
	return m
}

// Root returns the root POLICY node.
func (m *PolicySourceModel) Root() *ModelNode { return m.root }

// NamespaceVersion returns the WS-Policy version the model was written in.
func (m *PolicySourceModel) NamespaceVersion() NamespaceVersion { return m.version }

// ID returns the wsu:Id of the policy.
func (m *PolicySourceModel) ID() string { return m.id }

// Name returns the Name attribute of the policy.
func (m *PolicySourceModel) Name() string { return m.name }

// URI returns the URI the model is known by, if set.
func (m *PolicySourceModel) URI() string { return m.uri }

// SetURI records the URI the model is known by.
func (m *PolicySourceModel) SetURI(uri string) { m.uri = uri }

// SourceDigest returns the digest of the document the model was read from.
func (m *PolicySourceModel) SourceDigest() (v1.Hash, bool) {
	if m.digest == nil {
		return v1.Hash{}, false
	}
	return *m.digest, true
}

// SetSourceDigest records the digest of the document the model was read from.
func (m *PolicySourceModel) SetSourceDigest(h v1.Hash) {
	m.digest = &h
}

func (m *PolicySourceModel) addReference(n *ModelNode) {
	m.references = append(m.references, n)
}

// References returns the registered POLICY_REFERENCE nodes in creation order.
func (m *PolicySourceModel) References() []*ModelNode {
	out := make([]*ModelNode, len(m.references))
	copy(out, m.references)
	return out
}

// ContainsReferences reports whether any POLICY_REFERENCE node was created.
func (m *PolicySourceModel) ContainsReferences() bool {
	return len(m.references) > 0
}

// IsExpanded is true when every reference node has a resolved target.
func (m *PolicySourceModel) IsExpanded() bool {
	for _, ref := range m.references {
		if ref.referenced == nil {
			return false
		}
	}
	return true
}

// Expand resolves unresolved reference nodes through ctx. URIs the context
// does not know are left unresolved; translation reports them later. Calling
// Expand again only retries references that are still unresolved.
func (m *PolicySourceModel) Expand(ctx *Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: cannot expand policy model without a context", ErrInvalidData)
	}
	for _, node := range m.references {
		if node.referenced != nil {
			continue
		}
		data := node.ref
		var (
			target *PolicySourceModel
			err    error
		)
		if data.HasDigest() {
			target, err = ctx.RetrieveModelWithDigest(data.URI(), data.DigestAlgorithm(), data.Digest())
			if err != nil {
				return fmt.Errorf("failed to expand %s: %w", data, err)
			}
		} else {
			target = ctx.RetrieveModel(data.URI())
		}
		node.setReferencedModel(target)
	}
	return nil
}

// Clone deep-copies the tree with a rebuilt parent chain and reference
// registry. Referenced models are shared with the original.
func (m *PolicySourceModel) Clone() *PolicySourceModel {
	c := &PolicySourceModel{
		version: m.version,
		id:      m.id,
		name:    m.name,
		uri:     m.uri,
	}
	if m.digest != nil {
		d := *m.digest
		c.digest = &d
	}
	c.root = m.root.cloneInto(c, nil)
	return c
}

// Equal compares metadata and tree structure.
func (m *PolicySourceModel) Equal(o *PolicySourceModel) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.version == o.version && m.id == o.id && m.name == o.name && m.root.Equal(o.root)
}

func (m *PolicySourceModel) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Policy source model {\n")
	fmt.Fprintf(&b, "  policy id = '%s'\n", m.id)
	fmt.Fprintf(&b, "  policy name = '%s'\n", m.name)
	fmt.Fprintf(&b, "  namespace version = '%s'\n", m.version.ShortName())
	m.root.writeTo(&b, 1)
	b.WriteString("\n}")
	return b.String()
}
