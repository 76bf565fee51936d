package adminapi

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/internal/apierr"
	"github.com/typely/certify/storage/model"
)

const (
	localsAdminUser = "admin_user"
	basicRealm      = `Basic realm="certify admin"`
)

// authMiddleware protects the admin API once the first admin user exists.
// Until then every request passes so that the first account can be created.
func authMiddleware(users model.UsersStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := users.Count()
		if err != nil {
			return apierr.SendServerError(c, err)
		}
		if count == 0 {
			return c.Next()
		}

		username, password, ok := basicCredentials(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return challenge(c, "missing credentials")
		}
		u, err := users.Authenticate(username, password)
		switch {
		case errors.Is(err, model.ErrInvalidCredentials):
			log.WithField("username", username).Info("admin api: rejected credentials")
			return challenge(c, "invalid credentials")
		case err != nil:
			return apierr.SendServerError(c, err)
		}
		c.Locals(localsAdminUser, u.Username)
		return c.Next()
	}
}

func challenge(c *fiber.Ctx, msg string) error {
	c.Set(fiber.HeaderWWWAuthenticate, basicRealm)
	return c.Status(fiber.StatusUnauthorized).JSON(apierr.ErrorInvalidClient(msg))
}

// basicCredentials decodes the value of a Basic Authorization header
func basicCredentials(header string) (username, password string, ok bool) {
	scheme, encoded, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "basic") {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(raw), ":")
}

// adminUser returns the authenticated admin user name, if any
func adminUser(c *fiber.Ctx) string {
	u, _ := c.Locals(localsAdminUser).(string)
	return u
}
