package adminapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/typely/certify/certificate"
	"github.com/typely/certify/storage/model"
)

// Options controls optional features of the admin API registration.
type Options struct {
	// UsersEnabled controls whether the user management API is mounted.
	UsersEnabled bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validationMessage turns validator errors into a short, readable message
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			msgs[i] = fe.Field() + " must satisfy " + fe.Tag() + "=" + fe.Param()
		} else {
			msgs[i] = fe.Field() + " must satisfy " + fe.Tag()
		}
	}
	return strings.Join(msgs, "; ")
}

// Register mounts all admin API routes under the provided group.
func Register(r fiber.Router, storages model.Backends, revoker *certificate.Revoker, opts *Options) error {
	if storages.Users == nil {
		return errors.New("adminapi: no users store configured")
	}
	if revoker == nil {
		revoker = certificate.NewRevoker(storages.Certificates)
	}

	// Optional authentication middleware for all admin routes
	r.Use(authMiddleware(storages.Users))

	registerCertificates(r, storages.Certificates, revoker)
	registerRules(r, storages.Rules)
	registerTemplates(r, storages.Templates)
	registerSettings(r, storages.KV)
	// Users management
	if opts == nil || opts.UsersEnabled {
		registerUsers(r, storages.Users)
	}
	return nil
}
