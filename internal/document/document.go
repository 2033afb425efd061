// Package document reads policy source models from YAML policy documents.
//
// A file holds one or more documents separated by "---":
//
//	id: transport
//	namespace: "1.5"
//	namespaces:
//	  sp: http://docs.oasis-open.org/ws-sx/ws-securitypolicy/200702
//	policy:
//	  - exactly_one:
//	      - assertion:
//	          name: sp:HttpsToken
//	      - all:
//	          - assertion: {name: sp:UsernameToken, optional: true}
//	          - policy_reference: {uri: "#common"}
//
// Names are "{namespace}local", "prefix:local" with a prefix from the
// namespaces map, or a bare local name. A model's URI is the document's uri
// field, or "<path>#<id>" when it has none; references starting with "#"
// resolve against the file they appear in.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"gopkg.in/yaml.v3"
)

// Error reports a problem at a position in a policy document.
type Error struct {
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	pos := e.Path
	if e.Line > 0 {
		pos = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", pos, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", pos, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads every document in the file at path.
func Load(path string) ([]*sourcemodel.PolicySourceModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy document: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes every document in data. path is used for model URIs, for
// resolving "#id" references and in error messages. Each model's source
// digest is the SHA-256 of data.
func Parse(path string, data []byte) ([]*sourcemodel.PolicySourceModel, error) {
	digest, _, err := v1.SHA256(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to hash policy document: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	var models []*sourcemodel.PolicySourceModel
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &Error{Path: path, Msg: "invalid YAML", Err: err}
		}
		if len(doc.Content) == 0 {
			continue
		}

		d := &decoder{path: path}
		m, err := d.model(doc.Content[0])
		if err != nil {
			return nil, err
		}
		m.SetSourceDigest(digest)
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, &Error{Path: path, Msg: "no policy documents found"}
	}
	return models, nil
}

// LoadFiles loads every file, registers each model under its URI and expands
// all references. References to URIs no file provides stay unresolved.
func LoadFiles(paths []string) (*sourcemodel.Context, error) {
	ctx := sourcemodel.NewContext()
	for _, path := range paths {
		models, err := Load(path)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			if err := ctx.Register(m.URI(), m); err != nil {
				return nil, fmt.Errorf("failed to register policy from %s: %w", path, err)
			}
		}
	}
	if err := ctx.ExpandAll(); err != nil {
		return nil, err
	}
	return ctx, nil
}

// ModelURI is the URI a document without an explicit uri is registered under.
func ModelURI(path, id string) string {
	if id == "" {
		return path
	}
	return path + "#" + id
}
