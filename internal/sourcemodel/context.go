package sourcemodel

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

// Digest algorithm identifiers accepted for digest-qualified references.
const (
	DigestAlgorithmSHA256      = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestAlgorithmSHA256Short = "sha256"
)

// Context maps reference URIs to the models they name.
type Context struct {
	models map[string]*PolicySourceModel
	order  []string
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{models: make(map[string]*PolicySourceModel)}
}

// Register adds m under uri. The model's URI is set when it has none.
func (c *Context) Register(uri string, m *PolicySourceModel) error {
	if uri == "" {
		return fmt.Errorf("%w: policy model URI must not be empty", ErrInvalidData)
	}
	if m == nil {
		return fmt.Errorf("%w: cannot register nil policy model %q", ErrInvalidData, uri)
	}
	if _, ok := c.models[uri]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, uri)
	}
	if m.URI() == "" {
		m.SetURI(uri)
	}
	c.models[uri] = m
	c.order = append(c.order, uri)
	return nil
}

// RetrieveModel returns the model registered under uri, or nil.
func (c *Context) RetrieveModel(uri string) *PolicySourceModel {
	return c.models[uri]
}

// RetrieveModelWithDigest returns the model registered under uri after checking
// its source digest. An unknown uri yields (nil, nil), like RetrieveModel.
func (c *Context) RetrieveModelWithDigest(uri, algorithm, digest string) (*PolicySourceModel, error) {
	want, err := ParseReferenceDigest(algorithm, digest)
	if err != nil {
		return nil, err
	}
	m, ok := c.models[uri]
	if !ok {
		return nil, nil
	}
	got, ok := m.SourceDigest()
	if !ok {
		return nil, fmt.Errorf("%w: model %q has no recorded digest", ErrDigestMismatch, uri)
	}
	if got != want {
		return nil, fmt.Errorf("%w: model %q has digest %s, reference expects %s", ErrDigestMismatch, uri, got, want)
	}
	return m, nil
}

// ParseReferenceDigest converts a reference digest into a v1.Hash. The value
// may be "sha256:<hex>", bare hex, or base64 as WS-Policy documents carry it.
func ParseReferenceDigest(algorithm, digest string) (v1.Hash, error) {
	switch algorithm {
	case DigestAlgorithmSHA256, DigestAlgorithmSHA256Short, "":
	default:
		return v1.Hash{}, fmt.Errorf("%w: %s", ErrUnsupportedDigestAlgorithm, algorithm)
	}

	digest = strings.TrimSpace(digest)
	if strings.HasPrefix(digest, "sha256:") {
		h, err := v1.NewHash(digest)
		if err != nil {
			return v1.Hash{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return h, nil
	}
	if len(digest) == 64 {
		if _, err := hex.DecodeString(digest); err == nil {
			return v1.NewHash("sha256:" + strings.ToLower(digest))
		}
	}
	raw, err := base64.StdEncoding.DecodeString(digest)
	if err != nil {
		return v1.Hash{}, fmt.Errorf("%w: digest %q is neither hex nor base64", ErrInvalidData, digest)
	}
	if len(raw) != 32 {
		return v1.Hash{}, fmt.Errorf("%w: sha256 digest must be 32 bytes, got %d", ErrInvalidData, len(raw))
	}
	return v1.Hash{Algorithm: "sha256", Hex: hex.EncodeToString(raw)}, nil
}

// URIs returns registered URIs in registration order.
func (c *Context) URIs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Models returns registered models in registration order.
func (c *Context) Models() []*PolicySourceModel {
	out := make([]*PolicySourceModel, 0, len(c.order))
	for _, uri := range c.order {
		out = append(out, c.models[uri])
	}
	return out
}

// Len returns the number of registered models.
func (c *Context) Len() int { return len(c.order) }

// ExpandAll expands every registered model against this context.
func (c *Context) ExpandAll() error {
	for _, uri := range c.order {
		if err := c.models[uri].Expand(c); err != nil {
			return fmt.Errorf("failed to expand policy %q: %w", uri, err)
		}
	}
	return nil
}
