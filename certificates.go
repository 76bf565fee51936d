package certify

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/typely/certify/blob"
	"github.com/typely/certify/certificate"
	"github.com/typely/certify/internal/apierr"
)

// Paths of the authenticated certificate endpoints
const (
	PathIssue       = "/api/v1/attempts/:attemptID/certificate"
	PathEligibility = "/api/v1/attempts/:attemptID/eligibility"
	PathMine        = "/api/v1/certificates"
	PathDownload    = "/api/v1/certificates/:code/pdf"
)

func attemptIDParam(ctx *fiber.Ctx) (string, bool) {
	id, err := uuid.Parse(ctx.Params("attemptID"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// AddCertificateEndpoints adds the endpoints a signed-in user needs: issuing
// a certificate for an attempt, previewing eligibility, listing the own
// certificates and downloading a certificate's PDF
func (s *Server) AddCertificateEndpoints(issuer *certificate.Issuer, tokens *TokenVerifier) {
	s.server.Post(
		PathIssue, tokens.requirePrincipal, func(ctx *fiber.Ctx) error {
			attemptID, ok := attemptIDParam(ctx)
			if !ok {
				return ctx.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid attempt id"))
			}
			res, err := issuer.Issue(ctx.UserContext(), principal(ctx), attemptID)
			if err != nil {
				return apierr.Send(ctx, err)
			}
			ctx.Set(fiber.HeaderCacheControl, "no-store")
			if res.Status == certificate.StatusIssued {
				ctx.Status(fiber.StatusCreated)
			}
			return ctx.JSON(res)
		},
	)

	s.server.Get(
		PathEligibility, tokens.requirePrincipal, func(ctx *fiber.Ctx) error {
			attemptID, ok := attemptIDParam(ctx)
			if !ok {
				return ctx.Status(fiber.StatusBadRequest).JSON(apierr.ErrorInvalidRequest("invalid attempt id"))
			}
			e, err := issuer.Preview(ctx.UserContext(), principal(ctx), attemptID)
			if err != nil {
				return apierr.Send(ctx, err)
			}
			ctx.Set(fiber.HeaderCacheControl, "no-store")
			return ctx.JSON(e)
		},
	)

	s.server.Get(
		PathMine, tokens.requirePrincipal, func(ctx *fiber.Ctx) error {
			certs, err := issuer.ListMine(ctx.UserContext(), principal(ctx))
			if err != nil {
				return apierr.Send(ctx, err)
			}
			ctx.Set(fiber.HeaderCacheControl, "private, no-store")
			return ctx.JSON(certs)
		},
	)

	s.server.Get(
		PathDownload, tokens.requirePrincipal, func(ctx *fiber.Ctx) error {
			pdf, cert, err := issuer.Download(ctx.UserContext(), principal(ctx), ctx.Params("code"))
			if err != nil {
				return apierr.Send(ctx, err)
			}
			ctx.Set(fiber.HeaderContentType, blob.ContentTypePDF)
			ctx.Set(
				fiber.HeaderContentDisposition,
				fmt.Sprintf(`attachment; filename="typely-certificate-%s.pdf"`, cert.Code),
			)
			ctx.Set(fiber.HeaderCacheControl, "private, no-store")
			return ctx.Send(pdf)
		},
	)
}
