package certificate

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/storage/model"
)

// Outcome is the result kind of a verification lookup
type Outcome string

// Constants for Outcome
const (
	OutcomeInvalidCode Outcome = "invalid_code"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeRevoked     Outcome = "revoked"
	OutcomeValid       Outcome = "valid"
	OutcomeRateLimited Outcome = "rate_limited"
)

// Verification is the public view of a certificate
type Verification struct {
	Outcome         Outcome        `json:"status"`
	Valid           bool           `json:"valid"`
	Code            string         `json:"code,omitempty"`
	StudentName     string         `json:"student_name,omitempty"`
	TestType        model.TestType `json:"test_type,omitempty"`
	TestLabel       string         `json:"test_label,omitempty"`
	WPM             int            `json:"wpm,omitempty"`
	Accuracy        float64        `json:"accuracy,omitempty"`
	IssuedAt        *time.Time     `json:"issued_at,omitempty"`
	TemplateVersion int            `json:"template_version,omitempty"`
	RevokedAt       *time.Time     `json:"revoked_at,omitempty"`
	RevokedReason   string         `json:"reason,omitempty"`
}

// Verifier looks up certificates for third parties
type Verifier struct {
	certs       model.CertificatesStore
	attempts    model.AttemptsStore
	legacyCodes bool
}

// NewVerifier creates a Verifier. If legacyCodes is set, codes in the
// legacy TYP-YYYY-NNNNNN format are accepted.
func NewVerifier(certs model.CertificatesStore, attempts model.AttemptsStore, legacyCodes bool) *Verifier {
	return &Verifier{
		certs:       certs,
		attempts:    attempts,
		legacyCodes: legacyCodes,
	}
}

// Verify looks up the certificate for a raw, user supplied code. Only
// storage failures are returned as error.
func (v *Verifier) Verify(ctx context.Context, rawCode string) (*Verification, error) {
	code, ok := NormalizeCode(rawCode, v.legacyCodes)
	if !ok {
		return &Verification{Outcome: OutcomeInvalidCode}, nil
	}
	cert, err := v.certs.ByCode(ctx, code)
	if err != nil {
		return nil, infrastructureError(err, "could not look up certificate")
	}
	if cert == nil {
		return &Verification{
			Outcome: OutcomeNotFound,
			Code:    code,
		}, nil
	}

	name := model.DefaultStudentName
	if v.attempts != nil {
		if n, err := v.attempts.StudentName(ctx, cert.UserID); err != nil {
			log.WithError(err).WithField("code", code).Warn("could not load student name")
		} else {
			name = n
		}
	}

	testType := model.NormalizeAttemptTestType(string(cert.TestType))
	issued := cert.IssuedAt
	out := &Verification{
		Outcome:         OutcomeValid,
		Valid:           true,
		Code:            cert.Code,
		StudentName:     name,
		TestType:        testType,
		TestLabel:       testType.Label(),
		WPM:             cert.WPM,
		Accuracy:        cert.Accuracy,
		IssuedAt:        &issued,
		TemplateVersion: cert.Version(),
	}
	if cert.IsRevoked {
		out.Outcome = OutcomeRevoked
		out.Valid = false
		out.RevokedAt = cert.RevokedAt
		if cert.RevokedReason != nil {
			out.RevokedReason = *cert.RevokedReason
		}
	}
	return out, nil
}
