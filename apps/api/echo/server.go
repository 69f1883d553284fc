package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/auth"
	"github.com/skillbarter/backend/core/booking"
	"github.com/skillbarter/backend/core/connection"
	"github.com/skillbarter/backend/core/contact"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/review"
	"github.com/skillbarter/backend/core/session"
	"github.com/skillbarter/backend/core/stats"
	"github.com/skillbarter/backend/core/user"
)

const bodyLimit = "1M"

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		AuthSvc         auth.Service
		UserSvc         user.Service
		ExchangeSvc     exchange.Service
		BookingSvc      booking.Service
		SessionSvc      session.Service
		ReviewSvc       review.Service
		NotificationSvc notification.Service
		ConnectionSvc   connection.Service
		StatsSvc        stats.Service
		ContactSvc      contact.Service

		// RateLimiter is optional: requests are not limited when nil.
		RateLimiter RateLimiter
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware)
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.AllowOrigins,
		AllowCredentials: true,
	}))
	s.app.Use(middleware.Secure())
	s.app.Use(middleware.Gzip())
	s.app.Use(middleware.BodyLimit(bodyLimit))
	if s.deps.RateLimiter != nil {
		s.app.Use(rateLimitMiddleware(s.deps.RateLimiter, s.deps.Logger))
	}

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/api/v1")
	authn := newAuthenticator(s.deps.AuthSvc, s.deps.UserSvc, s.deps.Logger)

	registerAuthAPI(v1, authn, s.deps)
	registerUserAPI(v1, authn, s.deps)
	registerReviewAPI(v1, authn, s.deps)
	registerConnectionAPI(v1, authn, s.deps)
	registerExchangeAPI(v1, authn, s.deps)
	registerBookingAPI(v1, authn, s.deps)
	registerSessionAPI(v1, authn, s.deps)
	registerNotificationAPI(v1, authn, s.deps)
	registerContactAPI(v1, authn, s.deps)
	registerStatsAPI(v1, authn, s.deps)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Skill Barter API")
}
