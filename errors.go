package torque

import (
	"fmt"
	"net/http"
)

// Kind classifies an Error so the server can map it to a default response
// without the caller having to pick a status code directly.
type Kind int

// Error kinds, per the propagation policy: ValidationError->422,
// BadRequest->400, Timeout->504, Unavailable->503, Cancelled->499,
// everything else->500. A Cancelled error is written as an ordinary 499
// response with a JSON body; the connection is not closed.
const (
	KindInternal Kind = iota
	KindNotFound
	KindMethodNotAllowed
	KindBadRequest
	KindPayloadTooLarge
	KindHeaderTooLarge
	KindUnauthorized
	KindForbidden
	KindValidation
	KindTimeout
	KindUnavailable
	KindCancelled
)

// status is the default HTTP status for each Kind.
func (k Kind) status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindBadRequest:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindHeaderTooLarge:
		return http.StatusRequestHeaderFieldsTooLarge
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error type torque handlers and middlewares are expected to
// return when they want the server to pick the response for them.
type Error struct {
	Kind   Kind
	Detail string
	Fields []FieldError
	cause  error
}

// FieldError names one offending field of a ValidationError.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.Kind.status())
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds an *Error of the given kind with a detail message.
func NewError(k Kind, detail string) *Error {
	return &Error{Kind: k, Detail: detail}
}

// Wrap attaches an internal cause to an opaque 500-kind Error, keeping the
// cause out of the response body while preserving it for logging. A
// *validate.BindError unwraps to a 422 KindValidation Error carrying its
// field list, since handlers commonly do `return res.Err(validate.Bind(...))`
// directly.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	if e := wrapBindError(err); e != nil {
		return e
	}
	return &Error{Kind: KindInternal, Detail: "internal server error", cause: err}
}

// NotFound, MethodNotAllowed, BadRequest and the rest below are convenience
// constructors matching the error kinds of spec section 7.
func NotFound(detail string) *Error          { return NewError(KindNotFound, detail) }
func MethodNotAllowed(detail string) *Error  { return NewError(KindMethodNotAllowed, detail) }
func BadRequest(detail string) *Error        { return NewError(KindBadRequest, detail) }
func Unauthorized(detail string) *Error      { return NewError(KindUnauthorized, detail) }
func Forbidden(detail string) *Error         { return NewError(KindForbidden, detail) }
func Timeout(detail string) *Error           { return NewError(KindTimeout, detail) }
func Unavailable(detail string) *Error       { return NewError(KindUnavailable, detail) }
func Cancelled(detail string) *Error         { return NewError(KindCancelled, detail) }
func PayloadTooLarge(detail string) *Error   { return NewError(KindPayloadTooLarge, detail) }

// ValidationError builds an Error carrying per-field reasons.
func ValidationError(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Detail: "validation failed", Fields: fields}
}

// errorBody is the compact JSON body shape from spec section 7.
type errorBody struct {
	Error  string       `json:"error"`
	Detail string       `json:"detail,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

func (e *Error) body() errorBody {
	b := errorBody{Error: http.StatusText(e.Kind.status()), Fields: e.Fields}
	if e.Detail != "" && e.Detail != b.Error {
		b.Detail = e.Detail
	}
	return b
}

func (e *Error) String() string {
	return fmt.Sprintf("torque: %s: %s", http.StatusText(e.Kind.status()), e.Error())
}
