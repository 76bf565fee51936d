package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/typely/certify/certificate"
	"github.com/typely/certify/internal/cache"
)

// verificationCacheInvalidationMiddleware clears the cached verification
// response of the certificate in the request path for requests that
// successfully modify it.
// It should be attached only to non-GET routes.
func verificationCacheInvalidationMiddleware(c *fiber.Ctx) error {
	if err := c.Next(); err != nil {
		return err
	}
	status := c.Response().StatusCode()
	if status < 200 || status >= 400 {
		return nil
	}
	if code, ok := certificate.NormalizeCode(c.Params("code"), true); ok {
		cache.InvalidateVerification(code)
	}
	return nil
}
