package torque

import "github.com/torquehq/torque/validate"

// wrapBindError converts a *validate.BindError into a 422 KindValidation
// Error carrying its field list, so Wrap(validate.Bind(...)) produces the
// response body shape spec section 7 describes for validation failures.
func wrapBindError(err error) *Error {
	be, ok := err.(*validate.BindError)
	if !ok {
		return nil
	}
	fields := make([]FieldError, len(be.Fields))
	for i, f := range be.Fields {
		fields[i] = FieldError{Field: f.Field, Reason: f.Reason}
	}
	return ValidationError(fields...)
}
