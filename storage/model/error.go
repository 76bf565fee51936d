package model

import (
	"fmt"
	"strings"
)

// NotFoundError is an error signaling that something was not found in the
// database
type NotFoundError string

// Error implements the error interface
func (e NotFoundError) Error() string {
	return string(e)
}

// NotFoundErrorFmt returns a NotFoundError from the passed format string and parameters
func NotFoundErrorFmt(format string, params ...any) NotFoundError {
	return NotFoundError(fmt.Sprintf(format, params...))
}

// AlreadyExistsError is an error signaling that something already exists in
// the database
type AlreadyExistsError string

// Error implements the error interface
func (e AlreadyExistsError) Error() string {
	return string(e)
}

// AlreadyExistsErrorFmt returns an AlreadyExistsError from the passed format string and parameters
func AlreadyExistsErrorFmt(format string, params ...any) AlreadyExistsError {
	return AlreadyExistsError(fmt.Sprintf(format, params...))
}

// DBErrorKind classifies database failures independent of the driver
type DBErrorKind string

// Constants for DBErrorKind
const (
	DBErrorUnknown         DBErrorKind = "unknown"
	DBErrorUniqueViolation DBErrorKind = "unique_violation"
	DBErrorMissingRelation DBErrorKind = "missing_relation"
	DBErrorMissingColumn   DBErrorKind = "missing_column"
	DBErrorCheckViolation  DBErrorKind = "check_violation"
)

// DBError is a classified database error. Constraint holds the name of the
// violated constraint or, if the driver does not report one, the driver
// message.
type DBError struct {
	Kind       DBErrorKind
	Constraint string
	Err        error
}

// Error implements the error interface
func (e *DBError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

// Unwrap returns the driver error
func (e *DBError) Unwrap() error {
	return e.Err
}

// IsCodeFormatViolation reports whether the error is a check constraint
// violation on the certificate code column.
func (e *DBError) IsCodeFormatViolation() bool {
	return e != nil && e.Kind == DBErrorCheckViolation &&
		strings.Contains(strings.ToLower(e.Constraint), "code")
}

// IsMissingColumn reports whether the error says that column does not exist.
// Drivers name the column only in their message.
func (e *DBError) IsMissingColumn(column string) bool {
	if e == nil || e.Kind != DBErrorMissingColumn {
		return false
	}
	column = strings.ToLower(column)
	if strings.Contains(strings.ToLower(e.Constraint), column) {
		return true
	}
	return e.Err != nil && strings.Contains(strings.ToLower(e.Err.Error()), column)
}
