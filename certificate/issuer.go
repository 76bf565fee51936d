package certificate

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/typely/certify/artifact"
	"github.com/typely/certify/blob"
	"github.com/typely/certify/storage"
	"github.com/typely/certify/storage/model"
)

// Status is the business outcome of an issuance request
type Status string

// Constants for Status
const (
	StatusIssued                Status = "issued"
	StatusAlreadyIssued         Status = "already_issued"
	StatusNotEligible           Status = "not_eligible"
	StatusTemplateNotConfigured Status = "template_not_configured"
	StatusSystemNotReady        Status = "system_not_ready"
	StatusEligible              Status = "eligible"
)

const maxInsertAttempts = 4

// IssueResult is returned by Issuer.Issue
type IssueResult struct {
	Status      Status             `json:"status"`
	Certificate *model.Certificate `json:"certificate,omitempty"`
	Eligibility *Eligibility       `json:"eligibility,omitempty"`
}

// IssuerConfig configures an Issuer
type IssuerConfig struct {
	// SiteURL is the public base url; verification links point to
	// <SiteURL>/verify-certificate?code=<code>
	SiteURL      string
	BuildTimeout time.Duration
	BlobTimeout  time.Duration
}

// Issuer turns eligible attempts into certificates
type Issuer struct {
	certs     model.CertificatesStore
	rules     model.RulesStore
	templates model.TemplatesStore
	attempts  model.AttemptsStore
	kv        model.KeyValueStore
	builder   artifact.Builder
	blobs     blob.Store
	codes     *CodeGenerator
	conf      IssuerConfig
	now       func() time.Time
}

// NewIssuer creates a new Issuer
func NewIssuer(backends model.Backends, builder artifact.Builder, blobs blob.Store, conf IssuerConfig) *Issuer {
	if conf.BuildTimeout <= 0 {
		conf.BuildTimeout = 30 * time.Second
	}
	if conf.BlobTimeout <= 0 {
		conf.BlobTimeout = 10 * time.Second
	}
	return &Issuer{
		certs:     backends.Certificates,
		rules:     backends.Rules,
		templates: backends.Templates,
		attempts:  backends.Attempts,
		kv:        backends.KV,
		builder:   builder,
		blobs:     blobs,
		codes:     NewCodeGenerator(backends.Certificates),
		conf:      conf,
		now:       time.Now,
	}
}

// VerificationURL returns the public verification link for code
func VerificationURL(siteURL, code string) string {
	return strings.TrimSuffix(siteURL, "/") + "/verify-certificate?code=" + url.QueryEscape(code)
}

// normalized returns a copy of c with a nil template version replaced by
// the default version
func normalized(c *model.Certificate) *model.Certificate {
	if c == nil {
		return nil
	}
	out := *c
	if out.TemplateVersion == nil {
		v := model.DefaultTemplateVersion
		out.TemplateVersion = &v
	}
	return &out
}

// ownedAttempt loads an attempt and checks that it belongs to principal
func (i *Issuer) ownedAttempt(ctx context.Context, principal, attemptID string) (*model.Attempt, error) {
	if principal == "" {
		return nil, authorizationError("authentication required")
	}
	attempt, err := i.attempts.Get(ctx, attemptID)
	if err != nil {
		var nf model.NotFoundError
		if errors.As(err, &nf) {
			return nil, notFoundError("attempt '%s' not found", attemptID)
		}
		return nil, infrastructureError(err, "could not load attempt")
	}
	if attempt.UserID != principal {
		return nil, authorizationError("attempt '%s' does not belong to the caller", attemptID)
	}
	return attempt, nil
}

// issueContext holds the data fetched for one issuance
type issueContext struct {
	attempt     *model.Attempt
	template    *model.CertificateTemplate
	rule        *model.CertificateRule
	studentName string
	logoURL     string
	issuedAt    time.Time
	eligibility Eligibility
}

// Issue issues a certificate for the attempt, if it qualifies. Re-issuing
// for the same attempt returns the stored certificate.
func (i *Issuer) Issue(ctx context.Context, principal, attemptID string) (*IssueResult, error) {
	logger := log.WithFields(
		log.Fields{
			"attempt": attemptID,
			"user":    principal,
		},
	)

	attempt, err := i.ownedAttempt(ctx, principal, attemptID)
	if err != nil {
		if isMissingRelation(err) {
			logger.WithError(err).Warn("certificate tables are not available")
			return &IssueResult{Status: StatusSystemNotReady}, nil
		}
		return nil, err
	}

	existing, err := i.certs.ByAttempt(ctx, attemptID)
	if err != nil {
		if isMissingRelation(err) {
			logger.WithError(err).Warn("certificate tables are not available")
			return &IssueResult{Status: StatusSystemNotReady}, nil
		}
		return nil, infrastructureError(err, "could not look up certificate")
	}
	if existing != nil {
		return &IssueResult{
			Status:      StatusAlreadyIssued,
			Certificate: normalized(existing),
		}, nil
	}

	enabled, err := storage.IssuanceEnabled(i.kv)
	if err != nil && !isMissingRelation(err) {
		return nil, infrastructureError(err, "could not read issuance settings")
	}
	if err == nil && !enabled {
		logger.Info("certificate issuance is disabled")
		return &IssueResult{Status: StatusSystemNotReady}, nil
	}

	ic := &issueContext{attempt: attempt}
	if err = i.fetch(ctx, ic); err != nil {
		if isMissingRelation(err) {
			logger.WithError(err).Warn("certificate tables are not available")
			return &IssueResult{Status: StatusSystemNotReady}, nil
		}
		return nil, infrastructureError(err, "could not load issuance data")
	}
	if ic.template == nil {
		return &IssueResult{Status: StatusTemplateNotConfigured}, nil
	}

	ic.eligibility = Evaluate(*attempt, ic.rule)
	if !ic.eligibility.Eligible {
		return &IssueResult{
			Status:      StatusNotEligible,
			Eligibility: &ic.eligibility,
		}, nil
	}

	code, err := i.codes.Modern(ctx)
	if err != nil {
		return nil, i.codeError(err)
	}
	ic.issuedAt = i.now().UTC()

	path, err := i.render(ctx, ic, code, logger)
	if err != nil {
		return nil, err
	}
	return i.insert(ctx, ic, code, path, logger)
}

// fetch loads template, rule, student name and logo concurrently
func (i *Issuer) fetch(ctx context.Context, ic *issueContext) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(
		func() (err error) {
			ic.template, err = i.templates.Active(gctx)
			return
		},
	)
	g.Go(
		func() (err error) {
			ic.rule, err = i.rules.Active(gctx)
			return
		},
	)
	g.Go(
		func() (err error) {
			ic.studentName, err = i.attempts.StudentName(gctx, ic.attempt.UserID)
			return
		},
	)
	g.Go(
		func() error {
			logo, err := storage.GetLogoURL(i.kv)
			if err != nil {
				log.WithError(err).Warn("could not read certificate logo setting")
				return nil
			}
			ic.logoURL = logo
			return nil
		},
	)
	return g.Wait()
}

func (i *Issuer) codeError(err error) error {
	if errors.Is(err, ErrCodeSpaceExhausted) {
		return newError(KindConfiguration, err, "certificate code space exhausted")
	}
	return infrastructureError(err, "could not generate certificate code")
}

func (i *Issuer) buildRequest(ic *issueContext, code string) artifact.Request {
	return artifact.Request{
		Template:        *ic.template,
		StudentName:     ic.studentName,
		TestLabel:       ic.eligibility.TestType.Label(),
		WPM:             ic.eligibility.WPM,
		Accuracy:        ic.eligibility.Accuracy,
		IssuedAt:        ic.issuedAt,
		Code:            code,
		VerificationURL: VerificationURL(i.conf.SiteURL, code),
		LogoURL:         ic.logoURL,
	}
}

// build renders the artifact under the build timeout
func (i *Issuer) build(ctx context.Context, req artifact.Request) ([]byte, error) {
	bctx, cancel := context.WithTimeout(ctx, i.conf.BuildTimeout)
	defer cancel()
	pdf, err := i.builder.Build(bctx, req)
	if err != nil {
		return nil, infrastructureError(err, "could not build certificate")
	}
	return pdf, nil
}

// upload stores the artifact. Failures are logged and reported as a nil
// path, the certificate is then regenerated on demand.
func (i *Issuer) upload(ctx context.Context, p string, pdf []byte, logger log.FieldLogger) *string {
	if i.blobs == nil {
		return nil
	}
	uctx, cancel := context.WithTimeout(ctx, i.conf.BlobTimeout)
	defer cancel()
	if err := i.blobs.Upload(uctx, p, pdf, blob.ContentTypePDF); err != nil {
		logger.WithError(err).WithField("path", p).Warn("could not upload certificate; continuing without stored file")
		return nil
	}
	return &p
}

// deleteBlob removes an uploaded artifact. It runs even if ctx is already
// cancelled.
func (i *Issuer) deleteBlob(ctx context.Context, p *string, logger log.FieldLogger) {
	if p == nil || i.blobs == nil {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.conf.BlobTimeout)
	defer cancel()
	if err := i.blobs.Delete(dctx, *p); err != nil {
		logger.WithError(err).WithField("path", *p).Warn("could not delete certificate file")
	}
}

// render builds and uploads the artifact for code
func (i *Issuer) render(ctx context.Context, ic *issueContext, code string, logger log.FieldLogger) (*string, error) {
	pdf, err := i.build(ctx, i.buildRequest(ic, code))
	if err != nil {
		return nil, err
	}
	return i.upload(ctx, blob.CertificatePath(ic.attempt.UserID, code, ic.issuedAt), pdf, logger), nil
}

// insert stores the certificate and resolves the failures the store reports
func (i *Issuer) insert(
	ctx context.Context, ic *issueContext, code string, path *string, logger log.FieldLogger,
) (*IssueResult, error) {
	versionDisabled := false
	legacy := false
	for n := 0; n < maxInsertAttempts; n++ {
		version := ic.template.Version
		cert := model.Certificate{
			Code:            code,
			UserID:          ic.attempt.UserID,
			AttemptID:       ic.attempt.ID,
			TemplateID:      ic.template.ID,
			WPM:             ic.eligibility.WPM,
			Accuracy:        ic.eligibility.Accuracy,
			TestType:        ic.eligibility.TestType,
			IssuedAt:        ic.issuedAt,
			TemplateVersion: &version,
			StoragePath:     path,
		}
		res := i.certs.Insert(ctx, cert)
		switch res.Status {
		case model.InsertInserted:
			logger.WithField("code", code).Info("issued certificate")
			return &IssueResult{
				Status:      StatusIssued,
				Certificate: normalized(res.Certificate),
				Eligibility: &ic.eligibility,
			}, nil
		case model.InsertAlreadyExists:
			logger.WithField("code", res.Certificate.Code).Info("certificate was issued concurrently")
			i.deleteBlob(ctx, path, logger)
			return &IssueResult{
				Status:      StatusAlreadyIssued,
				Certificate: normalized(res.Certificate),
			}, nil
		}

		var dbErr *model.DBError
		if !errors.As(res.Err, &dbErr) {
			i.deleteBlob(ctx, path, logger)
			logger.WithError(res.Err).Error("could not store certificate")
			return nil, infrastructureError(res.Err, "could not store certificate")
		}
		switch {
		case dbErr.IsMissingColumn(model.ColumnTemplateVersion) && !versionDisabled:
			logger.WithError(dbErr).Warn("certificate table lacks template version; retrying without it")
			i.certs.DisableTemplateVersionColumn()
			versionDisabled = true
		case dbErr.IsCodeFormatViolation() && !legacy:
			logger.WithError(dbErr).Warn("database rejects certificate code format; retrying with legacy code")
			legacy = true
			var err error
			if code, path, err = i.recode(ctx, ic, path, legacy, logger); err != nil {
				return nil, err
			}
		case dbErr.Kind == model.DBErrorUniqueViolation:
			logger.WithField("code", code).Warn("certificate code collision; retrying with new code")
			var err error
			if code, path, err = i.recode(ctx, ic, path, legacy, logger); err != nil {
				return nil, err
			}
		case dbErr.Kind == model.DBErrorMissingRelation:
			i.deleteBlob(ctx, path, logger)
			logger.WithError(dbErr).Warn("certificate tables are not available")
			return &IssueResult{Status: StatusSystemNotReady}, nil
		default:
			i.deleteBlob(ctx, path, logger)
			logger.WithError(dbErr).Error("could not store certificate")
			return nil, infrastructureError(dbErr, "could not store certificate")
		}
	}
	i.deleteBlob(ctx, path, logger)
	logger.Error("could not store certificate; insert attempts exhausted")
	return nil, infrastructureError(nil, "could not store certificate after %d attempts", maxInsertAttempts)
}

// recode discards the uploaded artifact, draws a new code and renders the
// artifact again, since the code is printed on it
func (i *Issuer) recode(
	ctx context.Context, ic *issueContext, oldPath *string, legacy bool, logger log.FieldLogger,
) (string, *string, error) {
	i.deleteBlob(ctx, oldPath, logger)
	var code string
	var err error
	if legacy {
		code, err = i.codes.Legacy(ctx)
	} else {
		code, err = i.codes.Modern(ctx)
	}
	if err != nil {
		return "", nil, i.codeError(err)
	}
	path, err := i.render(ctx, ic, code, logger)
	if err != nil {
		return "", nil, err
	}
	return code, path, nil
}

// PreviewResult is returned by Issuer.Preview. Eligibility is nil if the
// certificate tables are not available.
type PreviewResult struct {
	Status Status `json:"status"`
	*Eligibility
}

// Preview evaluates an attempt against the active rule without issuing
func (i *Issuer) Preview(ctx context.Context, principal, attemptID string) (*PreviewResult, error) {
	attempt, err := i.ownedAttempt(ctx, principal, attemptID)
	if err == nil {
		var rule *model.CertificateRule
		rule, err = i.rules.Active(ctx)
		if err == nil {
			e := Evaluate(*attempt, rule)
			status := StatusNotEligible
			if e.Eligible {
				status = StatusEligible
			}
			return &PreviewResult{
				Status:      status,
				Eligibility: &e,
			}, nil
		}
		err = infrastructureError(err, "could not load certificate rule")
	}
	if isMissingRelation(err) {
		log.WithError(err).WithField("attempt", attemptID).Warn("certificate tables are not available")
		return &PreviewResult{Status: StatusSystemNotReady}, nil
	}
	return nil, err
}

// ListMine returns the certificates of principal
func (i *Issuer) ListMine(ctx context.Context, principal string) ([]model.Certificate, error) {
	if principal == "" {
		return nil, authorizationError("authentication required")
	}
	certs, err := i.certs.ListByUser(ctx, principal)
	if err != nil {
		return nil, infrastructureError(err, "could not list certificates")
	}
	for j := range certs {
		certs[j] = *normalized(&certs[j])
	}
	return certs, nil
}
