package auth

import "errors"

// ValidationError rejects a command without mutating state. Key addresses the
// message catalog; Placeholders are alternating key/value pairs for template
// substitution.
type ValidationError struct {
	Key          string
	Placeholders []string
}

func (e *ValidationError) Error() string { return e.Key }

// Validation builds a ValidationError from a key and key/value pairs.
func Validation(key string, kv ...string) *ValidationError {
	return &ValidationError{Key: key, Placeholders: kv}
}

// AsValidation unwraps a ValidationError if err is one.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}
