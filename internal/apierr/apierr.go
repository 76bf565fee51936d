// Package apierr holds the error response body shared by the public and the
// admin API.
package apierr

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/certificate"
)

// Error codes
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidClient  = "invalid_client"
	CodeUnauthorized   = "unauthorized"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeRateLimited    = "rate_limited"
	CodeServerError    = "server_error"
)

// Error is the json body of an error response
type Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ErrorInvalidRequest returns an invalid_request Error
func ErrorInvalidRequest(description string) Error {
	return Error{
		Error:            CodeInvalidRequest,
		ErrorDescription: description,
	}
}

// ErrorInvalidClient returns an invalid_client Error
func ErrorInvalidClient(description string) Error {
	return Error{
		Error:            CodeInvalidClient,
		ErrorDescription: description,
	}
}

// ErrorUnauthorized returns an unauthorized Error
func ErrorUnauthorized(description string) Error {
	return Error{
		Error:            CodeUnauthorized,
		ErrorDescription: description,
	}
}

// ErrorForbidden returns a forbidden Error
func ErrorForbidden(description string) Error {
	return Error{
		Error:            CodeForbidden,
		ErrorDescription: description,
	}
}

// ErrorNotFound returns a not_found Error
func ErrorNotFound(description string) Error {
	return Error{
		Error:            CodeNotFound,
		ErrorDescription: description,
	}
}

// ErrorRateLimited returns a rate_limited Error
func ErrorRateLimited(description string) Error {
	return Error{
		Error:            CodeRateLimited,
		ErrorDescription: description,
	}
}

// ErrorServerError returns a server_error Error
func ErrorServerError(description string) Error {
	return Error{
		Error:            CodeServerError,
		ErrorDescription: description,
	}
}

// descriptionInternal replaces the message of server side errors, which may
// carry driver or backend details
const descriptionInternal = "internal error"

// FromError maps an error returned by the certificate package to a http
// status code and response body
func FromError(err error) (int, Error) {
	msg := err.Error()
	switch certificate.KindOf(err) {
	case certificate.KindAuthorization:
		return fiber.StatusForbidden, ErrorForbidden(msg)
	case certificate.KindValidation:
		return fiber.StatusBadRequest, ErrorInvalidRequest(msg)
	case certificate.KindNotFound:
		return fiber.StatusNotFound, ErrorNotFound(msg)
	default:
		return fiber.StatusInternalServerError, ErrorServerError(descriptionInternal)
	}
}

// SendServerError logs err and writes a 500 response without its details
func SendServerError(ctx *fiber.Ctx, err error) error {
	log.WithError(err).WithField("path", ctx.Path()).Error("request failed")
	return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(descriptionInternal))
}

// Send writes err as json response; server side errors are logged
func Send(ctx *fiber.Ctx, err error) error {
	status, body := FromError(err)
	if status >= fiber.StatusInternalServerError {
		log.WithError(err).WithField("path", ctx.Path()).Error("request failed")
	}
	return ctx.Status(status).JSON(body)
}
