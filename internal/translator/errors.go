package translator

import "errors"

// ErrStructural marks source trees the normalization rules cannot process:
// unexpected node types, unresolved or cyclic references, several nested
// policies on one assertion.
var ErrStructural = errors.New("invalid policy source model structure")

// ErrConfiguration marks invalid assertion creator registrations.
var ErrConfiguration = errors.New("invalid assertion creator configuration")

// ErrAssertionCreation marks failures reported by an assertion creator.
var ErrAssertionCreation = errors.New("assertion creation failed")

// ErrAlternativeLimit is returned when normalization would exceed the
// configured number of alternatives.
var ErrAlternativeLimit = errors.New("policy alternative limit exceeded")

// TranslationError is the single error type returned by the translator.
// Kind is one of the sentinel errors above, or the context error when the
// translation was cancelled.
type TranslationError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *TranslationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *TranslationError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
