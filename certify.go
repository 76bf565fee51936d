package certify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/api/adminapi"
	"github.com/typely/certify/certificate"
	"github.com/typely/certify/internal/apierr"
	"github.com/typely/certify/internal/logger"
	"github.com/typely/certify/storage/model"
)

// Server serves the public certificate API and, if enabled, the admin API
type Server struct {
	server     *fiber.App
	admin      *fiber.App
	serverConf ServerConf
	// VerificationCacheTTL is how long valid verification responses are
	// kept in the response cache; zero uses a default of five minutes
	VerificationCacheTTL time.Duration
}

// FiberServerConfig is the fiber.Config that is used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:    3 * time.Second,
	WriteTimeout:   60 * time.Second,
	IdleTimeout:    150 * time.Second,
	ReadBufferSize: 8192,
	ErrorHandler:   handleError,
	Network:        "tcp",
}

func handleError(ctx *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		body := apierr.ErrorInvalidRequest(fe.Message)
		switch {
		case fe.Code == fiber.StatusNotFound:
			body = apierr.ErrorNotFound(fe.Message)
		case fe.Code >= fiber.StatusInternalServerError:
			body = apierr.ErrorServerError(fe.Message)
		}
		return ctx.Status(fe.Code).JSON(body)
	}
	log.WithError(err).WithField("path", ctx.Path()).Error("unhandled error")
	return apierr.Send(ctx, err)
}

func newFiberApp(serverConf ServerConf) *fiber.App {
	if tps := serverConf.TrustedProxies; len(tps) > 0 {
		FiberServerConfig.TrustedProxies = serverConf.TrustedProxies
		FiberServerConfig.EnableTrustedProxyCheck = true
	}
	FiberServerConfig.ProxyHeader = serverConf.ForwardedIPHeader
	app := fiber.New(FiberServerConfig)
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(
		fiberlog.New(
			fiberlog.Config{
				Output: logger.AccessLogWriter(),
			},
		),
	)
	app.Use(requestid.New())
	return app
}

// NewServer creates a new Server. The admin API is mounted under
// /api/v1/admin unless adminOpts is nil; if ServerConf.AdminAPIPort is set
// it is served on that port instead of the main one.
func NewServer(
	serverConf ServerConf,
	storages model.Backends,
	revoker *certificate.Revoker,
	adminOpts *adminapi.Options,
) (*Server, error) {
	s := &Server{
		server:     newFiberApp(serverConf),
		serverConf: serverConf,
	}
	if adminOpts == nil {
		return s, nil
	}
	adminApp := s.server
	if serverConf.AdminAPIPort > 0 {
		s.admin = fiber.New(FiberServerConfig)
		s.admin.Use(recover.New())
		s.admin.Use(requestid.New())
		adminApp = s.admin
	}
	if err := adminapi.Register(adminApp.Group("/api/v1/admin"), storages, revoker, adminOpts); err != nil {
		return nil, err
	}
	return s, nil
}

// App returns the underlying fiber.App
func (s *Server) App() *fiber.App {
	return s.server
}

// HttpHandlerFunc returns an http.HandlerFunc for serving all the necessary endpoints
func (s *Server) HttpHandlerFunc() http.HandlerFunc {
	return adaptor.FiberApp(s.server)
}

// Listen starts an http server at the specific address for serving all the
// necessary endpoints
func (s *Server) Listen(addr string) error {
	return s.server.Listen(addr)
}

// Shutdown gracefully stops the servers
func (s *Server) Shutdown() error {
	if s.admin != nil {
		if err := s.admin.Shutdown(); err != nil {
			return err
		}
	}
	return s.server.Shutdown()
}

// Start starts the configured servers and blocks
func (s *Server) Start() {
	conf := s.serverConf
	if s.admin != nil {
		go func() {
			log.WithField("port", conf.AdminAPIPort).Info("starting admin api server")
			log.WithError(s.admin.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.AdminAPIPort))).Fatal()
		}()
	}
	if !conf.TLS.Enabled {
		log.WithField("port", conf.Port).Info("TLS is disabled starting http server")
		log.WithError(s.server.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.Port))).Fatal()
	}
	// TLS enabled
	if conf.TLS.RedirectHTTP {
		httpServer := fiber.New(FiberServerConfig)
		httpServer.All(
			"*", func(ctx *fiber.Ctx) error {
				//goland:noinspection HttpUrlsUsage
				return ctx.Redirect(
					strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1),
					fiber.StatusPermanentRedirect,
				)
			},
		)
		log.Info("TLS and http redirect enabled, starting redirect server on port 80")
		go func() {
			log.WithError(httpServer.Listen(fmt.Sprintf("%s:80", conf.IPListen))).Fatal()
		}()
	}
	time.Sleep(time.Millisecond) // This is just for a more pretty output with the tls header printed after the http one
	log.Info("TLS enabled, starting https server on port 443")
	log.WithError(s.server.ListenTLS(fmt.Sprintf("%s:443", conf.IPListen), conf.TLS.Cert, conf.TLS.Key)).Fatal()
}
