package certificate

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/artifact"
	"github.com/typely/certify/blob"
	"github.com/typely/certify/storage"
	"github.com/typely/certify/storage/model"
)

// Download returns the PDF of a certificate owned by principal. If no file
// is stored or the stored file cannot be read, the certificate is rendered
// again and the new file is stored.
func (i *Issuer) Download(ctx context.Context, principal, rawCode string) ([]byte, *model.Certificate, error) {
	if principal == "" {
		return nil, nil, authorizationError("authentication required")
	}
	code, ok := NormalizeCode(rawCode, true)
	if !ok {
		return nil, nil, validationError("invalid certificate code '%s'", rawCode)
	}
	cert, err := i.certs.ByCode(ctx, code)
	if err != nil {
		return nil, nil, infrastructureError(err, "could not look up certificate")
	}
	if cert == nil {
		return nil, nil, notFoundError("certificate '%s' not found", code)
	}
	if cert.UserID != principal {
		return nil, nil, authorizationError("certificate '%s' does not belong to the caller", code)
	}
	logger := log.WithFields(
		log.Fields{
			"code": code,
			"user": principal,
		},
	)

	if cert.HasStoredArtifact() && i.blobs != nil {
		dctx, cancel := context.WithTimeout(ctx, i.conf.BlobTimeout)
		pdf, err := i.blobs.Download(dctx, *cert.StoragePath)
		cancel()
		if err == nil {
			return pdf, normalized(cert), nil
		}
		logger.WithError(err).Warn("could not read stored certificate; regenerating")
	}

	pdf, err := i.regenerate(ctx, cert)
	if err != nil {
		return nil, nil, err
	}
	p := i.upload(ctx, blob.CertificatePath(cert.UserID, cert.Code, cert.IssuedAt), pdf, logger)
	if p != nil && (cert.StoragePath == nil || *cert.StoragePath != *p) {
		if err = i.certs.SetStoragePath(ctx, cert.Code, p); err != nil {
			logger.WithError(err).Warn("could not record certificate storage path")
		} else {
			cert.StoragePath = p
		}
	}
	return pdf, normalized(cert), nil
}

// regenerate renders a stored certificate again from its ledger entry
func (i *Issuer) regenerate(ctx context.Context, cert *model.Certificate) ([]byte, error) {
	tmpl, err := i.templates.ByID(ctx, cert.TemplateID)
	if err != nil {
		return nil, infrastructureError(err, "could not load certificate template")
	}
	if tmpl == nil {
		if tmpl, err = i.templates.Active(ctx); err != nil {
			return nil, infrastructureError(err, "could not load certificate template")
		}
	}
	if tmpl == nil {
		return nil, newError(KindConfiguration, nil, "no certificate template configured")
	}
	name, err := i.attempts.StudentName(ctx, cert.UserID)
	if err != nil {
		return nil, infrastructureError(err, "could not load student name")
	}
	logo, err := storage.GetLogoURL(i.kv)
	if err != nil {
		log.WithError(err).Warn("could not read certificate logo setting")
	}
	return i.build(
		ctx, artifact.Request{
			Template:        *tmpl,
			StudentName:     name,
			TestLabel:       model.NormalizeAttemptTestType(string(cert.TestType)).Label(),
			WPM:             cert.WPM,
			Accuracy:        cert.Accuracy,
			IssuedAt:        cert.IssuedAt,
			Code:            cert.Code,
			VerificationURL: VerificationURL(i.conf.SiteURL, cert.Code),
			LogoURL:         logo,
		},
	)
}
