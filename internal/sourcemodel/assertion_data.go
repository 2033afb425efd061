package sourcemodel

import (
	"fmt"
	"sort"
	"strings"
)

// AssertionData is the payload of an ASSERTION or ASSERTION_PARAMETER_NODE.
//
// The attribute map is copy-on-write: every update installs a fresh map, so a
// snapshot returned by Attributes stays valid and no locking is needed as long
// as a single goroutine mutates the value.
type AssertionData struct {
	name      QName
	value     string
	attrs     map[QName]string
	optional  bool
	ignorable bool
	nodeType  NodeType
}

// NewAssertionData creates data for an ASSERTION node.
func NewAssertionData(name QName) (*AssertionData, error) {
	return newAssertionData(name, "", nil, false, false, NodeAssertion)
}

// NewAssertionDataWith creates data for an ASSERTION node with every field set.
func NewAssertionDataWith(name QName, value string, attrs map[QName]string, optional, ignorable bool) (*AssertionData, error) {
	return newAssertionData(name, value, attrs, optional, ignorable, NodeAssertion)
}

// NewParameterData creates data for an ASSERTION_PARAMETER_NODE.
func NewParameterData(name QName) (*AssertionData, error) {
	return newAssertionData(name, "", nil, false, false, NodeAssertionParameter)
}

// NewParameterDataWith creates data for an ASSERTION_PARAMETER_NODE with every field set.
func NewParameterDataWith(name QName, value string, attrs map[QName]string, optional, ignorable bool) (*AssertionData, error) {
	return newAssertionData(name, value, attrs, optional, ignorable, NodeAssertionParameter)
}

func newAssertionData(name QName, value string, attrs map[QName]string, optional, ignorable bool, t NodeType) (*AssertionData, error) {
	if name.IsZero() {
		return nil, fmt.Errorf("%w: assertion name must have a local part", ErrInvalidData)
	}
	if err := checkDataNodeType(t); err != nil {
		return nil, err
	}

	d := &AssertionData{
		name:     name,
		value:    value,
		attrs:    make(map[QName]string, len(attrs)),
		nodeType: t,
	}
	for k, v := range attrs {
		d.attrs[k] = v
		d.syncFlag(k, v)
	}
	if optional {
		d.optional = true
	}
	if ignorable {
		d.ignorable = true
	}
	return d, nil
}

func checkDataNodeType(t NodeType) error {
	if t != NodeAssertion && t != NodeAssertionParameter {
		return fmt.Errorf("%w: assertion data cannot belong to a %s node", ErrInvalidData, t)
	}
	return nil
}

// Name returns the assertion's qualified name.
func (d *AssertionData) Name() QName { return d.name }

// Value returns the text value, if any.
func (d *AssertionData) Value() string { return d.value }

// NodeType is NodeAssertion or NodeAssertionParameter.
func (d *AssertionData) NodeType() NodeType { return d.nodeType }

// IsOptional reports the wsp:Optional flag.
func (d *AssertionData) IsOptional() bool { return d.optional }

// IsIgnorable reports the wsp:Ignorable flag.
func (d *AssertionData) IsIgnorable() bool { return d.ignorable }

// IsPrivate reports whether the WSIT visibility attribute is "private".
func (d *AssertionData) IsPrivate() bool {
	return d.attrs[VisibilityAttribute] == VisibilityPrivate
}

// Attributes returns a snapshot of the attribute map.
func (d *AssertionData) Attributes() map[QName]string {
	out := make(map[QName]string, len(d.attrs))
	for k, v := range d.attrs {
		out[k] = v
	}
	return out
}

// AttributeNames returns attribute names sorted by their string form.
func (d *AssertionData) AttributeNames() []QName {
	names := make([]QName, 0, len(d.attrs))
	for k := range d.attrs {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names
}

// Attribute returns the value of a single attribute.
func (d *AssertionData) Attribute(name QName) (string, bool) {
	v, ok := d.attrs[name]
	return v, ok
}

// SetValue replaces the text value.
func (d *AssertionData) SetValue(value string) {
	d.value = value
}

// SetAttribute adds or overwrites an attribute. Setting wsp:Optional or
// wsp:Ignorable also updates the matching flag.
func (d *AssertionData) SetAttribute(name QName, value string) {
	next := d.Attributes()
	next[name] = value
	d.attrs = next
	d.syncFlag(name, value)
}

// RemoveAttribute deletes an attribute and returns its previous value.
func (d *AssertionData) RemoveAttribute(name QName) (string, bool) {
	old, ok := d.attrs[name]
	if !ok {
		return "", false
	}
	next := d.Attributes()
	delete(next, name)
	d.attrs = next
	d.syncFlag(name, "")
	return old, true
}

// SetOptional sets the optional flag and the matching attribute for version v.
func (d *AssertionData) SetOptional(v NamespaceVersion, optional bool) {
	if optional {
		d.SetAttribute(v.OptionalAttribute(), "true")
		return
	}
	d.RemoveAttribute(v.OptionalAttribute())
	d.optional = false
}

// SetIgnorable sets the ignorable flag and the matching attribute for version v.
func (d *AssertionData) SetIgnorable(v NamespaceVersion, ignorable bool) {
	if ignorable {
		d.SetAttribute(v.IgnorableAttribute(), "true")
		return
	}
	d.RemoveAttribute(v.IgnorableAttribute())
	d.ignorable = false
}

func (d *AssertionData) syncFlag(name QName, value string) {
	switch {
	case isOptionalAttribute(name):
		d.optional = parseXSBoolean(value)
	case isIgnorableAttribute(name):
		d.ignorable = parseXSBoolean(value)
	}
}

func parseXSBoolean(s string) bool {
	s = strings.TrimSpace(s)
	return s == "true" || s == "1"
}

// Clone deep-copies the data, including the attribute map.
func (d *AssertionData) Clone() *AssertionData {
	if d == nil {
		return nil
	}
	c := *d
	c.attrs = d.Attributes()
	return &c
}

// Equal compares every field.
func (d *AssertionData) Equal(o *AssertionData) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.name != o.name || d.value != o.value || d.nodeType != o.nodeType ||
		d.optional != o.optional || d.ignorable != o.ignorable || len(d.attrs) != len(o.attrs) {
		return false
	}
	for k, v := range d.attrs {
		if ov, ok := o.attrs[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (d *AssertionData) String() string {
	var b strings.Builder
	d.writeTo(&b, 0)
	return b.String()
}

func (d *AssertionData) writeTo(b *strings.Builder, indent int) {
	pad := strings.Repeat("  ", indent)
	fmt.Fprintf(b, "%sAssertion data {\n", pad)
	fmt.Fprintf(b, "%s  namespace = '%s'\n", pad, d.name.Namespace)
	fmt.Fprintf(b, "%s  local name = '%s'\n", pad, d.name.Local)
	fmt.Fprintf(b, "%s  value = '%s'\n", pad, d.value)
	fmt.Fprintf(b, "%s  optional = '%t'\n", pad, d.optional)
	fmt.Fprintf(b, "%s  ignorable = '%t'\n", pad, d.ignorable)
	if len(d.attrs) == 0 {
		fmt.Fprintf(b, "%s  no attributes\n", pad)
	} else {
		fmt.Fprintf(b, "%s  attributes {\n", pad)
		for _, name := range d.AttributeNames() {
			fmt.Fprintf(b, "%s    name = '%s', value = '%s'\n", pad, name, d.attrs[name])
		}
		fmt.Fprintf(b, "%s  }\n", pad)
	}
	fmt.Fprintf(b, "%s}", pad)
}
