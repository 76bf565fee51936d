package certificate

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/blob"
	"github.com/typely/certify/storage/model"
)

const sweepBatchSize = 500

// SweepReport summarizes one sweep
type SweepReport struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Sweeper deletes stored certificate files that no certificate refers to.
// Such files are left behind when a request is cancelled between upload and
// insert.
type Sweeper struct {
	blobs blob.ListableStore
	certs model.CertificatesStore
	grace time.Duration
	now   func() time.Time
}

// NewSweeper creates a Sweeper. Files younger than grace are never deleted,
// so that in-flight issuances are not affected.
func NewSweeper(blobs blob.ListableStore, certs model.CertificatesStore, grace time.Duration) *Sweeper {
	if grace <= 0 {
		grace = time.Hour
	}
	return &Sweeper{
		blobs: blobs,
		certs: certs,
		grace: grace,
		now:   time.Now,
	}
}

func isCertificateFile(p string) bool {
	name := path.Base(p)
	return strings.HasPrefix(name, "typely-certificate-") && strings.HasSuffix(name, ".pdf")
}

// Sweep runs one sweep
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	objects, err := s.blobs.List(ctx, "")
	if err != nil {
		return report, errors.Wrap(err, "could not list certificate files")
	}
	cutoff := s.now().Add(-s.grace)
	var candidates []string
	for _, o := range objects {
		report.Scanned++
		if isCertificateFile(o.Path) && o.ModTime.Before(cutoff) {
			candidates = append(candidates, o.Path)
		}
	}
	for start := 0; start < len(candidates); start += sweepBatchSize {
		end := min(start+sweepBatchSize, len(candidates))
		batch := candidates[start:end]
		referenced, err := s.certs.ReferencedPaths(ctx, batch)
		if err != nil {
			return report, errors.Wrap(err, "could not check certificate files")
		}
		for _, p := range batch {
			if referenced[p] {
				continue
			}
			if err = s.blobs.Delete(ctx, p); err != nil {
				log.WithError(err).WithField("path", p).Warn("could not delete orphaned certificate file")
				report.Failed++
				continue
			}
			log.WithField("path", p).Info("deleted orphaned certificate file")
			report.Deleted++
		}
	}
	return report, nil
}

// Schedule registers the sweeper with a new cron scheduler and starts it.
// The caller stops the returned scheduler.
func (s *Sweeper) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(
		spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			report, err := s.Sweep(ctx)
			if err != nil {
				log.WithError(err).Error("orphan sweep failed")
				return
			}
			log.WithFields(
				log.Fields{
					"scanned": report.Scanned,
					"deleted": report.Deleted,
					"failed":  report.Failed,
				},
			).Debug("orphan sweep finished")
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid sweeper schedule '%s'", spec)
	}
	c.Start()
	return c, nil
}
