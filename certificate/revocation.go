package certificate

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/storage/model"
)

// MaxRevocationReasonLength is the maximum number of characters kept of a
// revocation reason
const MaxRevocationReasonLength = 500

// Revoker revokes and reinstates certificates
type Revoker struct {
	certs model.CertificatesStore
	now   func() time.Time
	// OnChange is called with the code of every certificate whose
	// revocation state changed
	OnChange func(code string)
}

// NewRevoker creates a Revoker
func NewRevoker(certs model.CertificatesStore) *Revoker {
	return &Revoker{
		certs: certs,
		now:   time.Now,
	}
}

func truncateReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) <= MaxRevocationReasonLength {
		return reason
	}
	return string([]rune(reason)[:MaxRevocationReasonLength])
}

// SetRevocation revokes (revoked=true) or reinstates a certificate.
// Revoking requires a reason.
func (r *Revoker) SetRevocation(ctx context.Context, rawCode string, revoked bool, reason string) (
	*model.Certificate, error,
) {
	code, ok := NormalizeCode(rawCode, true)
	if !ok {
		return nil, validationError("invalid certificate code '%s'", rawCode)
	}
	var (
		reasonPtr *string
		at        *time.Time
	)
	if revoked {
		reason = truncateReason(reason)
		if reason == "" {
			return nil, validationError("a reason is required to revoke a certificate")
		}
		now := r.now().UTC()
		reasonPtr = &reason
		at = &now
	}
	cert, err := r.certs.SetRevoked(ctx, code, revoked, reasonPtr, at)
	if err != nil {
		var nf model.NotFoundError
		if errors.As(err, &nf) {
			return nil, notFoundError("certificate '%s' not found", code)
		}
		return nil, infrastructureError(err, "could not update certificate")
	}
	log.WithFields(
		log.Fields{
			"code":    code,
			"revoked": revoked,
		},
	).Info("certificate revocation state changed")
	if r.OnChange != nil {
		r.OnChange(code)
	}
	return normalized(cert), nil
}

// Revoke revokes a certificate
func (r *Revoker) Revoke(ctx context.Context, code, reason string) (*model.Certificate, error) {
	return r.SetRevocation(ctx, code, true, reason)
}

// Unrevoke reinstates a revoked certificate
func (r *Revoker) Unrevoke(ctx context.Context, code string) (*model.Certificate, error) {
	return r.SetRevocation(ctx, code, false, "")
}
