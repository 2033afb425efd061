package document

import (
	"fmt"
	"strings"

	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"gopkg.in/yaml.v3"
)

// Content item keys.
const (
	keyPolicy          = "policy"
	keyAll             = "all"
	keyExactlyOne      = "exactly_one"
	keyAssertion       = "assertion"
	keyParameter       = "parameter"
	keyPolicyReference = "policy_reference"
)

// wspPrefix is bound to the document's WS-Policy namespace unless the
// namespaces map rebinds it.
const wspPrefix = "wsp"

type decoder struct {
	path     string
	version  sourcemodel.NamespaceVersion
	prefixes map[string]string
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) error {
	return &Error{Path: d.path, Line: n.Line, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) wrap(n *yaml.Node, msg string, err error) error {
	return &Error{Path: d.path, Line: n.Line, Msg: msg, Err: err}
}

// fields splits a mapping node into key → value, rejecting duplicates and
// keys not in allowed.
func (d *decoder) fields(n *yaml.Node, what string, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "%s must be a mapping", what)
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if !contains(allowed, k.Value) {
			return nil, d.errorf(k, "unknown %s field %q", what, k.Value)
		}
		if _, dup := out[k.Value]; dup {
			return nil, d.errorf(k, "duplicate %s field %q", what, k.Value)
		}
		out[k.Value] = v
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func (d *decoder) scalar(n *yaml.Node) (string, error) {
	if n == nil {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", d.errorf(n, "expected a scalar value")
	}
	return n.Value, nil
}

func (d *decoder) boolean(n *yaml.Node) (bool, error) {
	if n == nil {
		return false, nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, d.wrap(n, "expected true or false", err)
	}
	return b, nil
}

func (d *decoder) model(n *yaml.Node) (*sourcemodel.PolicySourceModel, error) {
	f, err := d.fields(n, "document", "id", "name", "uri", "namespace", "namespaces", "policy")
	if err != nil {
		return nil, err
	}

	ns, err := d.scalar(f["namespace"])
	if err != nil {
		return nil, err
	}
	d.version, err = sourcemodel.ParseNamespaceVersion(ns)
	if err != nil {
		return nil, d.wrap(f["namespace"], "invalid namespace", err)
	}

	d.prefixes = map[string]string{wspPrefix: string(d.version)}
	if pn := f["namespaces"]; pn != nil {
		if pn.Kind != yaml.MappingNode {
			return nil, d.errorf(pn, "namespaces must be a mapping of prefix to URI")
		}
		for i := 0; i+1 < len(pn.Content); i += 2 {
			uri, err := d.scalar(pn.Content[i+1])
			if err != nil {
				return nil, err
			}
			d.prefixes[pn.Content[i].Value] = uri
		}
	}

	id, err := d.scalar(f["id"])
	if err != nil {
		return nil, err
	}
	name, err := d.scalar(f["name"])
	if err != nil {
		return nil, err
	}
	uri, err := d.scalar(f["uri"])
	if err != nil {
		return nil, err
	}
	if uri == "" {
		uri = ModelURI(d.path, id)
	}

	m := sourcemodel.NewPolicySourceModelWithID(d.version, id, name)
	m.SetURI(uri)
	if err := d.items(m.Root(), f["policy"]); err != nil {
		return nil, err
	}
	return m, nil
}

// items decodes a sequence of content items under parent. A missing or null
// sequence adds nothing.
func (d *decoder) items(parent *sourcemodel.ModelNode, n *yaml.Node) error {
	if n == nil || n.Tag == "!!null" {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return d.errorf(n, "policy content must be a list")
	}
	for _, item := range n.Content {
		if err := d.content(parent, item); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) content(parent *sourcemodel.ModelNode, n *yaml.Node) error {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return d.errorf(n, "content item must be a mapping with exactly one of %s, %s, %s, %s, %s or %s",
			keyPolicy, keyAll, keyExactlyOne, keyAssertion, keyParameter, keyPolicyReference)
	}
	key, value := n.Content[0], n.Content[1]

	var (
		child *sourcemodel.ModelNode
		err   error
	)
	switch key.Value {
	case keyPolicy:
		child, err = parent.AddPolicy()
	case keyAll:
		child, err = parent.AddAll()
	case keyExactlyOne:
		child, err = parent.AddExactlyOne()
	case keyAssertion, keyParameter:
		return d.assertion(parent, key, value)
	case keyPolicyReference:
		return d.reference(parent, key, value)
	default:
		return d.errorf(key, "unknown content item %q", key.Value)
	}
	if err != nil {
		return d.wrap(key, "invalid nesting", err)
	}
	return d.items(child, value)
}

func (d *decoder) assertion(parent *sourcemodel.ModelNode, key, n *yaml.Node) error {
	f, err := d.fields(n, key.Value, "name", "value", "attributes", "optional", "ignorable", "content")
	if err != nil {
		return err
	}
	if f["name"] == nil {
		return d.errorf(n, "%s requires a name", key.Value)
	}
	rawName, err := d.scalar(f["name"])
	if err != nil {
		return err
	}
	name, err := d.qname(f["name"], rawName)
	if err != nil {
		return err
	}
	value, err := d.scalar(f["value"])
	if err != nil {
		return err
	}
	optional, err := d.boolean(f["optional"])
	if err != nil {
		return err
	}
	ignorable, err := d.boolean(f["ignorable"])
	if err != nil {
		return err
	}

	attrs := map[sourcemodel.QName]string{}
	if an := f["attributes"]; an != nil {
		if an.Kind != yaml.MappingNode {
			return d.errorf(an, "attributes must be a mapping")
		}
		for i := 0; i+1 < len(an.Content); i += 2 {
			k, v := an.Content[i], an.Content[i+1]
			qn, err := d.qname(k, k.Value)
			if err != nil {
				return err
			}
			val, err := d.scalar(v)
			if err != nil {
				return err
			}
			attrs[qn] = val
		}
	}

	var (
		data  *sourcemodel.AssertionData
		child *sourcemodel.ModelNode
	)
	if key.Value == keyParameter {
		data, err = sourcemodel.NewParameterDataWith(name, value, attrs, false, false)
	} else {
		data, err = sourcemodel.NewAssertionDataWith(name, value, attrs, false, false)
	}
	if err != nil {
		return d.wrap(n, "invalid "+key.Value, err)
	}
	if optional {
		data.SetOptional(d.version, true)
	}
	if ignorable {
		data.SetIgnorable(d.version, true)
	}

	if key.Value == keyParameter {
		child, err = parent.AddParameter(data)
	} else {
		child, err = parent.AddAssertion(data)
	}
	if err != nil {
		return d.wrap(key, "invalid nesting", err)
	}
	return d.items(child, f["content"])
}

func (d *decoder) reference(parent *sourcemodel.ModelNode, key, n *yaml.Node) error {
	f, err := d.fields(n, key.Value, "uri", "digest", "digest_algorithm")
	if err != nil {
		return err
	}
	uri, err := d.scalar(f["uri"])
	if err != nil {
		return err
	}
	digest, err := d.scalar(f["digest"])
	if err != nil {
		return err
	}
	alg, err := d.scalar(f["digest_algorithm"])
	if err != nil {
		return err
	}
	if strings.HasPrefix(uri, "#") {
		uri = d.path + uri
	}

	ref, err := sourcemodel.NewDigestPolicyReferenceData(uri, digest, alg)
	if err != nil {
		return d.wrap(n, "invalid policy reference", err)
	}
	if _, err := parent.AddPolicyReference(ref); err != nil {
		return d.wrap(key, "invalid nesting", err)
	}
	return nil
}

// qname resolves "{ns}local", "prefix:local" or a bare local name.
func (d *decoder) qname(n *yaml.Node, s string) (sourcemodel.QName, error) {
	if strings.HasPrefix(s, "{") {
		q, err := sourcemodel.ParseQName(s)
		if err != nil {
			return sourcemodel.QName{}, d.wrap(n, "invalid name", err)
		}
		return q, nil
	}
	prefix, local, ok := strings.Cut(s, ":")
	if !ok {
		if s == "" {
			return sourcemodel.QName{}, d.errorf(n, "name must not be empty")
		}
		return sourcemodel.NewQName("", s), nil
	}
	ns, known := d.prefixes[prefix]
	if !known {
		return sourcemodel.QName{}, d.errorf(n, "unknown namespace prefix %q in %q", prefix, s)
	}
	if local == "" {
		return sourcemodel.QName{}, d.errorf(n, "name %q has no local part", s)
	}
	return sourcemodel.NewQName(ns, local), nil
}
