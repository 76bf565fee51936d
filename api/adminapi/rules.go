package adminapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"tideland.dev/go/slices"

	"github.com/typely/certify/internal/apierr"
	"github.com/typely/certify/storage/model"
)

// checkRule validates a rule payload; the test type must be one of
// model.RuleTestTypes
func checkRule(req model.AddCertificateRule) error {
	if err := validate.Struct(req); err != nil {
		return errors.New(validationMessage(err))
	}
	tt := strings.ToLower(strings.TrimSpace(req.TestType))
	if unsupported := slices.Subtract([]string{tt}, model.RuleTestTypes); len(unsupported) > 0 {
		return fmt.Errorf("test_type must be one of %s", strings.Join(model.RuleTestTypes, ", "))
	}
	return nil
}

// registerRules wires handlers using a RulesStore abstraction.
func registerRules(r fiber.Router, store model.RulesStore) {
	g := r.Group("/rules")

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
			rule, err := store.Active(c.UserContext())
			if err != nil {
				return apierr.SendServerError(c, err)
			}
			if rule == nil {
				return c.Status(fiber.StatusNotFound).JSON(apierr.ErrorNotFound("no enabled certificate rule"))
			}
			return c.JSON(rule)
		},
	)

	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req model.AddCertificateRule
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest(err.Error()))
			}
			if err := checkRule(req); err != nil {
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
		"/:ruleID", func(c *fiber.Ctx) error {
			item, err := store.Get(c.Params("ruleID"))
			if err != nil {
				var notFoundError model.NotFoundError
				if errors.As(err, &notFoundError) {
					return c.Status(fiber.StatusNotFound).JSON(apierr.ErrorNotFound("certificate rule not found"))
				}
				return apierr.SendServerError(c, err)
			}
			return c.JSON(item)
		},
	)

	g.Put(
		"/:ruleID", func(c *fiber.Ctx) error {
			var req model.AddCertificateRule
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid body"))
			}
			if err := checkRule(req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest(err.Error()))
			}
			item, err := store.Update(c.Params("ruleID"), req)
			if err != nil {
				var notFoundError model.NotFoundError
				if errors.As(err, &notFoundError) {
					return c.Status(fiber.StatusNotFound).JSON(apierr.ErrorNotFound("certificate rule not found"))
				}
				return apierr.SendServerError(c, err)
			}
			return c.JSON(item)
		},
	)

	g.Delete(
		"/:ruleID", func(c *fiber.Ctx) error {
			if err := store.Delete(c.Params("ruleID")); err != nil {
				var notFoundError model.NotFoundError
				if errors.As(err, &notFoundError) {
					return c.Status(fiber.StatusNotFound).JSON(apierr.ErrorNotFound("certificate rule not found"))
				}
				return apierr.SendServerError(c, err)
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)
}
