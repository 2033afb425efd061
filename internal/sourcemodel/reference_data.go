package sourcemodel

import (
	"fmt"
	"net/url"
)

// DefaultDigestAlgorithm is the WS-Policy digest algorithm assumed when a
// reference carries a digest but names no algorithm.
const DefaultDigestAlgorithm = "http://schemas.xmlsoap.org/ws/2004/09/policy/Sha1Exc"

// PolicyReferenceData is the payload of a POLICY_REFERENCE node.
type PolicyReferenceData struct {
	uri             string
	digest          string
	digestAlgorithm string
}

// NewPolicyReferenceData creates reference data without a digest.
func NewPolicyReferenceData(uri string) (*PolicyReferenceData, error) {
	if err := validateReferenceURI(uri); err != nil {
		return nil, err
	}
	return &PolicyReferenceData{uri: uri}, nil
}

// NewDigestPolicyReferenceData creates reference data qualified by a digest.
// An empty algorithm defaults to DefaultDigestAlgorithm.
func NewDigestPolicyReferenceData(uri, digest, algorithm string) (*PolicyReferenceData, error) {
	if err := validateReferenceURI(uri); err != nil {
		return nil, err
	}
	if digest == "" && algorithm != "" {
		return nil, fmt.Errorf("%w: digest algorithm %q given without a digest", ErrInvalidData, algorithm)
	}
	if digest != "" && algorithm == "" {
		algorithm = DefaultDigestAlgorithm
	}
	return &PolicyReferenceData{uri: uri, digest: digest, digestAlgorithm: algorithm}, nil
}

func validateReferenceURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: policy reference URI must not be empty", ErrInvalidData)
	}
	if _, err := url.Parse(uri); err != nil {
		return fmt.Errorf("%w: policy reference URI %q: %v", ErrInvalidData, uri, err)
	}
	return nil
}

// URI returns the referenced model URI.
func (r *PolicyReferenceData) URI() string { return r.uri }

// Digest returns the digest value, or "" when the reference is unqualified.
func (r *PolicyReferenceData) Digest() string { return r.digest }

// DigestAlgorithm returns the digest algorithm URI.
func (r *PolicyReferenceData) DigestAlgorithm() string { return r.digestAlgorithm }

// HasDigest reports whether the reference is digest-qualified.
func (r *PolicyReferenceData) HasDigest() bool { return r.digest != "" }

// Equal compares all fields.
func (r *PolicyReferenceData) Equal(o *PolicyReferenceData) bool {
	if r == nil || o == nil {
		return r == o
	}
	return *r == *o
}

func (r *PolicyReferenceData) String() string {
	if r.digest == "" {
		return fmt.Sprintf("reference to '%s'", r.uri)
	}
	return fmt.Sprintf("reference to '%s' (digest '%s', algorithm '%s')", r.uri, r.digest, r.digestAlgorithm)
}
