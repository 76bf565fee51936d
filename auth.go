package certify

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/internal/apierr"
)

const localsPrincipal = "principal"

// AuthConf configures how bearer tokens issued by the identity provider are
// verified
type AuthConf struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// TokenVerifier extracts the principal (the user id) from HS256 signed
// bearer tokens
type TokenVerifier struct {
	secret []byte
	opts   []jwt.ParseOption
}

// NewTokenVerifier creates a TokenVerifier
func NewTokenVerifier(conf AuthConf) (*TokenVerifier, error) {
	if conf.JWTSecret == "" {
		return nil, errors.New("no jwt secret configured")
	}
	v := &TokenVerifier{secret: []byte(conf.JWTSecret)}
	v.opts = []jwt.ParseOption{
		jwt.WithKey(jwa.HS256(), v.secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(30 * time.Second),
	}
	if conf.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(conf.Issuer))
	}
	if conf.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(conf.Audience))
	}
	return v, nil
}

// Principal verifies a raw token and returns its subject. The subject must
// be a uuid.
func (v *TokenVerifier) Principal(raw string) (string, error) {
	tok, err := jwt.ParseString(raw, v.opts...)
	if err != nil {
		return "", errors.Wrap(err, "invalid token")
	}
	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return "", errors.New("token has no subject")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return "", errors.Wrap(err, "token subject is not a valid user id")
	}
	return id.String(), nil
}

func bearerToken(ctx *fiber.Ctx) (string, bool) {
	auth := ctx.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

// requirePrincipal rejects requests without a valid bearer token and stores
// the principal in the request locals
func (v *TokenVerifier) requirePrincipal(ctx *fiber.Ctx) error {
	raw, ok := bearerToken(ctx)
	if !ok {
		ctx.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return ctx.Status(fiber.StatusUnauthorized).JSON(apierr.ErrorUnauthorized("missing bearer token"))
	}
	principal, err := v.Principal(raw)
	if err != nil {
		log.WithError(err).Debug("rejected bearer token")
		ctx.Set(fiber.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
		return ctx.Status(fiber.StatusUnauthorized).JSON(apierr.ErrorUnauthorized("invalid bearer token"))
	}
	ctx.Locals(localsPrincipal, principal)
	return ctx.Next()
}

func principal(ctx *fiber.Ctx) string {
	p, _ := ctx.Locals(localsPrincipal).(string)
	return p
}
