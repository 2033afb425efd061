package sourcemodel

import (
	"fmt"
	"strings"
)

// NodeType tags a ModelNode.
type NodeType int

const (
	NodePolicy NodeType = iota + 1
	NodeAll
	NodeExactlyOne
	NodePolicyReference
	NodeAssertion
	NodeAssertionParameter
)

var nodeTypeNames = map[NodeType]string{
	NodePolicy:             "POLICY",
	NodeAll:                "ALL",
	NodeExactlyOne:         "EXACTLY_ONE",
	NodePolicyReference:    "POLICY_REFERENCE",
	NodeAssertion:          "ASSERTION",
	NodeAssertionParameter: "ASSERTION_PARAMETER_NODE",
}

func (t NodeType) String() string {
	if s, ok := nodeTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// IsChildTypeSupported encodes the WS-Policy nesting grammar.
func IsChildTypeSupported(parent, child NodeType) bool {
	switch parent {
	case NodePolicy, NodeAll, NodeExactlyOne:
		switch child {
		case NodePolicy, NodeAll, NodeExactlyOne, NodePolicyReference, NodeAssertion:
			return true
		}
		return false
	case NodePolicyReference:
		return false
	case NodeAssertion:
		return child == NodePolicy || child == NodePolicyReference || child == NodeAssertionParameter
	case NodeAssertionParameter:
		return child == NodeAssertionParameter
	default:
		return false
	}
}

// ModelNode is one node of a policy source tree. Nodes are created through the
// factory methods of their parent and belong to exactly one PolicySourceModel.
type ModelNode struct {
	typ      NodeType
	parent   *ModelNode
	model    *PolicySourceModel
	children []*ModelNode

	data       *AssertionData
	ref        *PolicyReferenceData
	referenced *PolicySourceModel
}

// Type returns the node type.
func (n *ModelNode) Type() NodeType { return n.typ }

// Parent returns the parent node, or nil for the root.
func (n *ModelNode) Parent() *ModelNode { return n.parent }

// Model returns the owning model.
func (n *ModelNode) Model() *PolicySourceModel { return n.model }

// Data returns the assertion data of ASSERTION and ASSERTION_PARAMETER_NODE nodes.
func (n *ModelNode) Data() *AssertionData { return n.data }

// ReferenceData returns the payload of a POLICY_REFERENCE node.
func (n *ModelNode) ReferenceData() *PolicyReferenceData { return n.ref }

// ReferencedModel returns the model a POLICY_REFERENCE node resolved to.
func (n *ModelNode) ReferencedModel() *PolicySourceModel { return n.referenced }

// Children returns a copy of the child list.
func (n *ModelNode) Children() []*ModelNode {
	out := make([]*ModelNode, len(n.children))
	copy(out, n.children)
	return out
}

// Len returns the number of children.
func (n *ModelNode) Len() int { return len(n.children) }

// HasChildren reports whether the node has any children.
func (n *ModelNode) HasChildren() bool { return len(n.children) > 0 }

// IsDomainSpecific reports whether the node carries assertion data.
func (n *ModelNode) IsDomainSpecific() bool {
	return n.typ == NodeAssertion || n.typ == NodeAssertionParameter
}

// AddPolicy appends a nested POLICY node.
func (n *ModelNode) AddPolicy() (*ModelNode, error) {
	return n.addChild(NodePolicy)
}

// AddAll appends an ALL operator node.
func (n *ModelNode) AddAll() (*ModelNode, error) {
	return n.addChild(NodeAll)
}

// AddExactlyOne appends an EXACTLY_ONE operator node.
func (n *ModelNode) AddExactlyOne() (*ModelNode, error) {
	return n.addChild(NodeExactlyOne)
}

// AddAssertion appends an ASSERTION node holding data.
func (n *ModelNode) AddAssertion(data *AssertionData) (*ModelNode, error) {
	return n.addDataChild(NodeAssertion, data)
}

// AddParameter appends an ASSERTION_PARAMETER_NODE holding data.
func (n *ModelNode) AddParameter(data *AssertionData) (*ModelNode, error) {
	return n.addDataChild(NodeAssertionParameter, data)
}

// AddPolicyReference appends a POLICY_REFERENCE node and registers it with
// the owning model.
func (n *ModelNode) AddPolicyReference(ref *PolicyReferenceData) (*ModelNode, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: policy reference node requires reference data", ErrInvalidData)
	}
	child, err := n.addChild(NodePolicyReference)
	if err != nil {
		return nil, err
	}
	child.ref = ref
	n.model.addReference(child)
	return child, nil
}

func (n *ModelNode) addDataChild(t NodeType, data *AssertionData) (*ModelNode, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: %s node requires assertion data", ErrInvalidData, t)
	}
	if data.NodeType() != t {
		return nil, fmt.Errorf("%w: %s data cannot be attached to a %s node", ErrInvalidData, data.NodeType(), t)
	}
	child, err := n.addChild(t)
	if err != nil {
		return nil, err
	}
	child.data = data
	return child, nil
}

func (n *ModelNode) addChild(t NodeType) (*ModelNode, error) {
	if !IsChildTypeSupported(n.typ, t) {
		return nil, fmt.Errorf("%w: a %s node cannot have a %s child", ErrUnsupportedOperation, n.typ, t)
	}
	child := &ModelNode{typ: t, parent: n, model: n.model}
	n.children = append(n.children, child)
	return child, nil
}

// SetData replaces the assertion data of a domain-specific node.
func (n *ModelNode) SetData(data *AssertionData) error {
	if !n.IsDomainSpecific() {
		return fmt.Errorf("%w: a %s node cannot hold assertion data", ErrUnsupportedOperation, n.typ)
	}
	if data == nil || data.NodeType() != n.typ {
		return fmt.Errorf("%w: assertion data does not match %s node", ErrInvalidData, n.typ)
	}
	n.data = data
	return nil
}

func (n *ModelNode) setReferencedModel(m *PolicySourceModel) {
	n.referenced = m
}

// CopyTo deep-copies the subtree rooted at n and appends it to parent. The
// copy belongs to parent's model; reference targets are kept.
func (n *ModelNode) CopyTo(parent *ModelNode) (*ModelNode, error) {
	if !IsChildTypeSupported(parent.typ, n.typ) {
		return nil, fmt.Errorf("%w: a %s node cannot have a %s child", ErrUnsupportedOperation, parent.typ, n.typ)
	}
	c := n.cloneInto(parent.model, parent)
	parent.children = append(parent.children, c)
	return c, nil
}

// cloneInto copies the subtree under parent in model m, registering reference
// nodes with m. Referenced models are shared, not copied.
func (n *ModelNode) cloneInto(m *PolicySourceModel, parent *ModelNode) *ModelNode {
	c := &ModelNode{
		typ:        n.typ,
		parent:     parent,
		model:      m,
		data:       n.data.Clone(),
		ref:        n.ref,
		referenced: n.referenced,
	}
	if n.typ == NodePolicyReference {
		m.addReference(c)
	}
	if len(n.children) > 0 {
		c.children = make([]*ModelNode, len(n.children))
		for i, child := range n.children {
			c.children[i] = child.cloneInto(m, c)
		}
	}
	return c
}

// Equal compares type, payload and children recursively.
func (n *ModelNode) Equal(o *ModelNode) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.typ != o.typ || !n.data.Equal(o.data) || !n.ref.Equal(o.ref) || len(n.children) != len(o.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

func (n *ModelNode) String() string {
	var b strings.Builder
	n.writeTo(&b, 0)
	return b.String()
}

func (n *ModelNode) writeTo(b *strings.Builder, indent int) {
	pad := strings.Repeat("  ", indent)
	fmt.Fprintf(b, "%s%s {\n", pad, n.typ)
	switch {
	case n.data != nil:
		n.data.writeTo(b, indent+1)
		b.WriteString("\n")
	case n.ref != nil:
		fmt.Fprintf(b, "%s  %s", pad, n.ref)
		if n.referenced == nil {
			b.WriteString(" (unresolved)")
		}
		b.WriteString("\n")
	}
	for _, child := range n.children {
		child.writeTo(b, indent+1)
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "%s}", pad)
}
