// Package artifact defines the contract for rendering certificate PDFs and
// a client for an external rendering service.
package artifact

import (
	"context"
	"time"

	"github.com/typely/certify/storage/model"
)

// Request holds everything printed on a certificate
type Request struct {
	Template        model.CertificateTemplate `json:"template"`
	StudentName     string                    `json:"student_name"`
	TestLabel       string                    `json:"test_label"`
	WPM             int                       `json:"wpm"`
	Accuracy        float64                   `json:"accuracy"`
	IssuedAt        time.Time                 `json:"issued_at"`
	Code            string                    `json:"code"`
	VerificationURL string                    `json:"verification_url"`
	LogoURL         string                    `json:"logo_url,omitempty"`
}

// Builder renders a certificate
type Builder interface {
	Build(ctx context.Context, req Request) ([]byte, error)
}

// BuilderFunc adapts a function to the Builder interface
type BuilderFunc func(ctx context.Context, req Request) ([]byte, error)

// Build implements the Builder interface
func (f BuilderFunc) Build(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}
