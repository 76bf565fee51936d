package certify

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/certificate"
	"github.com/typely/certify/internal/apierr"
	"github.com/typely/certify/internal/cache"
	"github.com/typely/certify/internal/geoip"
	"github.com/typely/certify/ratelimit"
)

// PathVerify is the path of the public verification endpoint
const PathVerify = "/api/v1/certificates/verify"

const (
	cacheControlValid   = "public, max-age=60, s-maxage=300"
	cacheControlNoStore = "no-store"
	// revocation removes cached responses earlier
	defaultVerificationCacheTTL = 5 * time.Minute
)

type retryAfterer interface {
	RetryAfter(key string) time.Duration
}

func verificationHTTPStatus(o certificate.Outcome) int {
	switch o {
	case certificate.OutcomeInvalidCode:
		return fiber.StatusBadRequest
	case certificate.OutcomeNotFound:
		return fiber.StatusNotFound
	case certificate.OutcomeRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusOK
	}
}

func retryAfterSeconds(limiter ratelimit.Limiter, key string) string {
	d := ratelimit.DefaultWindow
	if r, ok := limiter.(retryAfterer); ok {
		d = r.RetryAfter(key)
	}
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// AddVerifyEndpoint adds the public certificate verification endpoint.
// Requests are limited per caller ip by limiter; geo may be nil.
func (s *Server) AddVerifyEndpoint(verifier *certificate.Verifier, limiter ratelimit.Limiter, geo *geoip.Locator) {
	ttl := s.VerificationCacheTTL
	if ttl <= 0 {
		ttl = defaultVerificationCacheTTL
	}
	s.server.Get(
		PathVerify, func(ctx *fiber.Ctx) error {
			ip := ctx.IP()
			raw := ctx.Query("code")
			logger := log.WithFields(
				log.Fields{
					"ip":      ip,
					"country": geo.Country(ip),
				},
			)
			if limiter != nil && !limiter.Allow(ip) {
				logger.Info("verification rate limited")
				ctx.Set(fiber.HeaderRetryAfter, retryAfterSeconds(limiter, ip))
				ctx.Set(fiber.HeaderCacheControl, cacheControlNoStore)
				return ctx.Status(fiber.StatusTooManyRequests).JSON(
					certificate.Verification{Outcome: certificate.OutcomeRateLimited},
				)
			}

			code, ok := certificate.NormalizeCode(raw, true)
			var cacheKey string
			if ok {
				cacheKey = cache.VerificationKey(code)
				var cached certificate.Verification
				found, err := cache.Get(cacheKey, &cached)
				if err != nil {
					logger.WithError(err).Warn("could not read verification cache")
				}
				if found {
					ctx.Set(fiber.HeaderCacheControl, cacheControlValid)
					return ctx.JSON(cached)
				}
			}

			res, err := verifier.Verify(ctx.UserContext(), raw)
			if err != nil {
				logger.WithError(err).Error("certificate verification failed")
				ctx.Set(fiber.HeaderCacheControl, cacheControlNoStore)
				return ctx.Status(fiber.StatusInternalServerError).JSON(
					apierr.ErrorServerError("verification is currently not available"),
				)
			}
			logger.WithFields(
				log.Fields{
					"code":   res.Code,
					"result": res.Outcome,
				},
			).Info("certificate verification")

			if res.Outcome != certificate.OutcomeValid {
				ctx.Set(fiber.HeaderCacheControl, cacheControlNoStore)
				return ctx.Status(verificationHTTPStatus(res.Outcome)).JSON(res)
			}
			if cacheKey != "" {
				if err = cache.Set(cacheKey, res, ttl); err != nil {
					logger.WithError(err).Warn("could not cache verification")
				}
			}
			ctx.Set(fiber.HeaderCacheControl, cacheControlValid)
			return ctx.JSON(res)
		},
	)
}

