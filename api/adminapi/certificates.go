package adminapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/certificate"
	"github.com/typely/certify/internal/apierr"
	"github.com/typely/certify/storage/model"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type revocationReq struct {
	Revoked *bool  `json:"revoked" validate:"required"`
	Reason  string `json:"reason"`
}

func queryInt(c *fiber.Ctx, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// registerCertificates wires the certificate ledger and revocation handlers
func registerCertificates(r fiber.Router, certs model.CertificatesStore, revoker *certificate.Revoker) {
	g := r.Group("/certificates")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			limit, ok := queryInt(c, "limit", defaultListLimit)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid limit"))
			}
			if limit == 0 || limit > maxListLimit {
				limit = maxListLimit
			}
			offset, ok := queryInt(c, "offset", 0)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid offset"))
			}
			list, err := certs.List(c.UserContext(), limit, offset)
			if err != nil {
				return apierr.SendServerError(c, err)
			}
			return c.JSON(list)
		},
	)

	g.Get(
		"/:code", func(c *fiber.Ctx) error {
			code, ok := certificate.NormalizeCode(c.Params("code"), true)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid certificate code"))
			}
			cert, err := certs.ByCode(c.UserContext(), code)
			if err != nil {
				return apierr.SendServerError(c, err)
			}
			if cert == nil {
				return c.Status(fiber.StatusNotFound).JSON(apierr.ErrorNotFound("certificate not found"))
			}
			return c.JSON(cert)
		},
	)

	g.Put(
		"/:code/revocation", verificationCacheInvalidationMiddleware, func(c *fiber.Ctx) error {
			var req revocationReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid body"))
			}
			if err := validate.Struct(req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest(validationMessage(err)))
			}
			cert, err := revoker.SetRevocation(c.UserContext(), c.Params("code"), *req.Revoked, req.Reason)
			if err != nil {
				return apierr.Send(c, err)
			}
			log.WithFields(
				log.Fields{
					"code":    cert.Code,
					"revoked": cert.IsRevoked,
					"admin":   adminUser(c),
				},
			).Info("admin api: certificate revocation updated")
			return c.JSON(cert)
		},
	)
}
