package adminapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/typely/certify/internal/apierr"
	"github.com/typely/certify/storage/model"
)

type createUserReq struct {
	Username    string `json:"username" validate:"required,max=64"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"max=255"`
}

type updateUserReq struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
	Password    *string `json:"password" validate:"omitempty,min=8"`
	Disabled    *bool   `json:"disabled"`
}

// userStoreError maps UsersStore errors to responses
func userStoreError(c *fiber.Ctx, err error) error {
	var notFound model.NotFoundError
	var exists model.AlreadyExistsError
	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(apierr.ErrorNotFound("user not found"))
	case errors.As(err, &exists):
		return c.Status(fiber.StatusConflict).JSON(apierr.ErrorInvalidRequest("user already exists"))
	default:
		return apierr.SendServerError(c, err)
	}
}

// isSelf reports whether username names the authenticated admin
func isSelf(c *fiber.Ctx, username string) bool {
	self := adminUser(c)
	return self != "" && strings.EqualFold(self, strings.TrimSpace(username))
}

func registerUsers(r fiber.Router, users model.UsersStore) {
	g := r.Group("/users")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			list, err := users.List()
			if err != nil {
				return userStoreError(c, err)
			}
			return c.JSON(list)
		},
	)
	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req createUserReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid body"))
			}
			if err := validate.Struct(req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest(validationMessage(err)))
			}
			u, err := users.Create(req.Username, req.Password, req.DisplayName)
			if err != nil {
				return userStoreError(c, err)
			}
			return c.Status(fiber.StatusCreated).JSON(u)
		},
	)
	g.Get(
		"/:username", func(c *fiber.Ctx) error {
			u, err := users.Get(c.Params("username"))
			if err != nil {
				return userStoreError(c, err)
			}
			return c.JSON(u)
		},
	)
	g.Put(
		"/:username", func(c *fiber.Ctx) error {
			username := c.Params("username")
			var req updateUserReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid body"))
			}
			if err := validate.Struct(req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest(validationMessage(err)))
			}
			if req.Disabled != nil && *req.Disabled && isSelf(c, username) {
				return c.Status(fiber.StatusConflict).JSON(apierr.ErrorInvalidRequest("cannot disable own account"))
			}
			u, err := users.Update(username, req.DisplayName, req.Password, req.Disabled)
			if err != nil {
				return userStoreError(c, err)
			}
			return c.JSON(u)
		},
	)
	g.Delete(
		"/:username", func(c *fiber.Ctx) error {
			username := c.Params("username")
			if isSelf(c, username) {
				return c.Status(fiber.StatusConflict).JSON(apierr.ErrorInvalidRequest("cannot delete own account"))
			}
			if err := users.Delete(username); err != nil {
				return userStoreError(c, err)
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)
}
