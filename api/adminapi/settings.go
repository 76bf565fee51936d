package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/typely/certify/internal/apierr"
	"github.com/typely/certify/storage"
	"github.com/typely/certify/storage/model"
)

type settings struct {
	IssuanceEnabled bool   `json:"issuance_enabled"`
	LogoURL         string `json:"logo_url"`
}

type updateSettingsReq struct {
	IssuanceEnabled *bool   `json:"issuance_enabled"`
	LogoURL         *string `json:"logo_url"`
}

func loadSettings(kv model.KeyValueStore) (*settings, error) {
	enabled, err := storage.IssuanceEnabled(kv)
	if err != nil {
		return nil, err
	}
	logo, err := storage.GetLogoURL(kv)
	if err != nil {
		return nil, err
	}
	return &settings{
		IssuanceEnabled: enabled,
		LogoURL:         logo,
	}, nil
}

// registerSettings wires the runtime issuance settings kept in the key value store
func registerSettings(r fiber.Router, kv model.KeyValueStore) {
	g := r.Group("/settings")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			s, err := loadSettings(kv)
			if err != nil {
				return apierr.SendServerError(c, err)
			}
			return c.JSON(s)
		},
	)

	g.Put(
		"/", func(c *fiber.Ctx) error {
			var req updateSettingsReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid body"))
			}
			if req.LogoURL != nil && *req.LogoURL != "" {
				if err := validate.Var(*req.LogoURL, "url"); err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("logo_url must be a url"))
				}
			}
			if req.IssuanceEnabled != nil {
				if err := storage.SetIssuanceEnabled(kv, *req.IssuanceEnabled); err != nil {
					return apierr.SendServerError(c, err)
				}
			}
			if req.LogoURL != nil {
				if err := storage.SetLogoURL(kv, *req.LogoURL); err != nil {
					return apierr.SendServerError(c, err)
				}
			}
			s, err := loadSettings(kv)
			if err != nil {
				return apierr.SendServerError(c, err)
			}
			return c.JSON(s)
		},
	)
}
