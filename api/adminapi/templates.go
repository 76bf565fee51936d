package adminapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/typely/certify/internal/apierr"
	"github.com/typely/certify/storage/model"
)

func checkTemplate(req model.AddCertificateTemplate) error {
	if err := validate.Struct(req); err != nil {
		return errors.New(validationMessage(err))
	}
	if req.IsActive && (req.BackgroundImageURL == nil || *req.BackgroundImageURL == "") {
		return errors.New("an active template needs a background_image_url")
	}
	return nil
}

// registerTemplates wires handlers using a TemplatesStore abstraction.
func registerTemplates(r fiber.Router, store model.TemplatesStore) {
	g := r.Group("/templates")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			items, err := store.List()
			if err != nil {
				return apierr.SendServerError(c, err)
			}
			return c.JSON(items)
		},
	)

	g.Get(
		"/active", func(c *fiber.Ctx) error {
			tmpl, err := store.Active(c.UserContext())
			if err != nil {
				return apierr.SendServerError(c, err)
			}
			if tmpl == nil {
				return c.Status(fiber.StatusNotFound).JSON(
					apierr.ErrorNotFound("no active certificate template with a background image"),
				)
			}
			return c.JSON(tmpl)
		},
	)

	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req model.AddCertificateTemplate
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest(err.Error()))
			}
			if err := checkTemplate(req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest(err.Error()))
			}
			item, err := store.Create(req)
			if err != nil {
				return apierr.SendServerError(c, err)
			}
			return c.Status(fiber.StatusCreated).JSON(item)
		},
	)

	g.Get(
		"/:templateID", func(c *fiber.Ctx) error {
			item, err := store.Get(c.Params("templateID"))
			if err != nil {
				var notFoundError model.NotFoundError
				if errors.As(err, &notFoundError) {
					return c.Status(fiber.StatusNotFound).JSON(apierr.ErrorNotFound("certificate template not found"))
				}
				return apierr.SendServerError(c, err)
			}
			return c.JSON(item)
		},
	)

	g.Put(
		"/:templateID", func(c *fiber.Ctx) error {
			var req model.AddCertificateTemplate
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid body"))
			}
			if err := checkTemplate(req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest(err.Error()))
			}
			item, err := store.Update(c.Params("templateID"), req)
			if err != nil {
				var notFoundError model.NotFoundError
				if errors.As(err, &notFoundError) {
					return c.Status(fiber.StatusNotFound).JSON(apierr.ErrorNotFound("certificate template not found"))
				}
				return apierr.SendServerError(c, err)
			}
			return c.JSON(item)
		},
	)

	g.Delete(
		"/:templateID", func(c *fiber.Ctx) error {
			if err := store.Delete(c.Params("templateID")); err != nil {
				var notFoundError model.NotFoundError
				if errors.As(err, &notFoundError) {
					return c.Status(fiber.StatusNotFound).JSON(apierr.ErrorNotFound("certificate template not found"))
				}
				return apierr.SendServerError(c, err)
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)
}
