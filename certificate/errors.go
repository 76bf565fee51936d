package certificate

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/typely/certify/storage/model"
)

// ErrorKind classifies errors returned by this package
type ErrorKind string

// Constants for ErrorKind
const (
	KindAuthorization  ErrorKind = "authorization"
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindConfiguration  ErrorKind = "configuration"
	KindInfrastructure ErrorKind = "infrastructure"
)

// Error is the error type returned by this package. Business outcomes such
// as "not eligible" are never reported as Error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Err.Error())
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

func authorizationError(format string, args ...any) *Error {
	return newError(KindAuthorization, nil, format, args...)
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

func notFoundError(format string, args ...any) *Error {
	return newError(KindNotFound, nil, format, args...)
}

func infrastructureError(err error, format string, args ...any) *Error {
	return newError(KindInfrastructure, errors.WithStack(err), format, args...)
}

// KindOf returns the ErrorKind of err. Storage not-found errors map to
// KindNotFound, every other error to KindInfrastructure.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var nf model.NotFoundError
	if errors.As(err, &nf) {
		return KindNotFound
	}
	return KindInfrastructure
}

// isMissingRelation reports whether err says that a table does not exist
func isMissingRelation(err error) bool {
	var dbErr *model.DBError
	return errors.As(err, &dbErr) && dbErr.Kind == model.DBErrorMissingRelation
}
