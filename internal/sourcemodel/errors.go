package sourcemodel

import "errors"

// ErrUnsupportedOperation is returned when a node is asked to do something its
// type does not allow, such as taking a child the WS-Policy grammar forbids.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// ErrInvalidData is returned for malformed assertion or reference data.
var ErrInvalidData = errors.New("invalid policy model data")

// ErrDigestMismatch is returned when a digest-qualified reference does not
// match the registered model.
var ErrDigestMismatch = errors.New("policy reference digest mismatch")

// ErrUnsupportedDigestAlgorithm is returned for digest algorithms the context
// cannot verify.
var ErrUnsupportedDigestAlgorithm = errors.New("unsupported policy reference digest algorithm")

// ErrDuplicateModel is returned when two models register under the same URI.
var ErrDuplicateModel = errors.New("policy model already registered")
