package main

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/typely/certify"
	"github.com/typely/certify/certificate"
	"github.com/typely/certify/cmd/certify/config"
	"github.com/typely/certify/internal/cache"
	"github.com/typely/certify/internal/geoip"
	"github.com/typely/certify/internal/logger"
	"github.com/typely/certify/internal/version"
)

func main() {
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	config.Load(configFile)
	c := config.Get()
	logger.Init(c.Logging.LoggerConf())
	log.WithField("version", version.VERSION).Info("Loaded Config")

	if err := config.InitCache(c); err != nil {
		log.WithError(err).Fatal("could not init cache")
	}

	store, err := config.LoadStorage(c)
	if err != nil {
		log.WithError(err).Fatal("could not load storage")
	}
	backs := store.Backends()

	blobs, err := config.NewBlobStore(c.Blob)
	if err != nil {
		log.WithError(err).Fatal("could not init blob store")
	}
	if closer, ok := blobs.(io.Closer); ok {
		defer closer.Close()
	}
	log.WithField("type", c.Blob.Type).Info("Loaded blob store")

	renderer, err := config.NewRenderer(c)
	if err != nil {
		log.WithError(err).Fatal("could not init certificate renderer client")
	}

	tokens, err := certify.NewTokenVerifier(c.Auth.AuthConf)
	if err != nil {
		log.WithError(err).Fatal("could not init token verification")
	}

	var geo *geoip.Locator
	if c.Verification.GeoIPDB != "" {
		geo, err = geoip.Open(c.Verification.GeoIPDB)
		if err != nil {
			log.WithError(err).Fatal("could not open geoip database")
		}
		defer geo.Close()
	}

	issuer := certificate.NewIssuer(
		backs, renderer, blobs, certificate.IssuerConfig{
			SiteURL:      c.Server.SiteURL,
			BuildTimeout: c.Artifact.Timeout.Duration(),
			BlobTimeout:  c.Blob.Timeout.Duration(),
		},
	)
	verifier := certificate.NewVerifier(backs.Certificates, backs.Attempts, c.Verification.LegacyCodes)
	revoker := certificate.NewRevoker(backs.Certificates)
	revoker.OnChange = cache.InvalidateVerification

	server, err := certify.NewServer(c.Server.ServerConf, backs, revoker, c.API.AdminOptions())
	if err != nil {
		log.WithError(err).Fatal("could not init server")
	}
	server.VerificationCacheTTL = c.Caching.VerificationCacheTTL()
	server.AddCertificateEndpoints(issuer, tokens)
	server.AddVerifyEndpoint(verifier, config.NewLimiter(c), geo)
	log.Info("Added Endpoints")

	if c.Sweeper.Enabled {
		sweeper := certificate.NewSweeper(blobs, backs.Certificates, c.Sweeper.Grace.Duration())
		cron, err := sweeper.Schedule(c.Sweeper.Schedule)
		if err != nil {
			log.WithError(err).Fatal("could not schedule certificate file sweeper")
		}
		defer cron.Stop()
		log.WithField("schedule", c.Sweeper.Schedule).Info("Scheduled certificate file sweeper")
	}

	server.Start()
}
