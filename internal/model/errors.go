package model

// InputError reports a malformed request detected before any network activity.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// NewInputError builds an InputError for the given field.
func NewInputError(field, reason string) *InputError {
	return &InputError{Field: field, Reason: reason}
}
