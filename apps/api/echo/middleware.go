package echoapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/auth"
	"github.com/skillbarter/backend/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	bearerPrefix    = "Bearer "
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skillbarter_http_requests_total",
	Help: "Total number of HTTP requests by method, route and status code",
}, []string{"method", "route", "code"})

// RateLimiter counts the hits of a client within the current window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	Limit() int
}

// authenticator builds the authentication middlewares.
type authenticator struct {
	authSvc auth.Service
	usrSvc  user.Service
	logger  core.Logger
	jwt     echo.MiddlewareFunc
}

func newAuthenticator(authSvc auth.Service, usrSvc user.Service, logger core.Logger) *authenticator {
	return &authenticator{
		authSvc: authSvc,
		usrSvc:  usrSvc,
		logger:  logger,
		jwt: middleware.JWTWithConfig(middleware.JWTConfig{
			SigningKey:    authSvc.Tokens().AccessKey(),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(auth.Claims),
		}),
	}
}

// required rejects requests without a valid, non-revoked access token of a live user.
func (a *authenticator) required(next echo.HandlerFunc) echo.HandlerFunc {
	return a.jwt(func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		if claims.Type != auth.TokenTypeAccess {
			return errInvalidToken
		}
		revoked, err := a.authSvc.IsRevoked(ctx.Request().Context(), bearerToken(ctx))
		if err != nil {
			return errors.Wrap(err, "checking token blacklist")
		}
		if revoked {
			return errTokenRevoked
		}
		if err := a.loadUser(ctx, claims.Subject); err != nil {
			return err
		}
		return next(ctx)
	})
}

// optional authenticates the request when it carries a valid token, and lets it through anonymously otherwise.
func (a *authenticator) optional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		token := bearerToken(ctx)
		if token == "" {
			return next(ctx)
		}
		claims, err := a.authSvc.Tokens().ParseAccess(token)
		if err != nil {
			return next(ctx)
		}
		revoked, err := a.authSvc.IsRevoked(ctx.Request().Context(), token)
		if err != nil {
			a.logger.Warn(fmt.Sprintf("checking token blacklist: %v", err), err)
			return next(ctx)
		}
		if !revoked {
			if err := a.loadUser(ctx, claims.Subject); err != nil && err != errUserGone {
				return err
			}
		}
		return next(ctx)
	}
}

func (a *authenticator) loadUser(ctx echo.Context, id string) error {
	usr, err := a.usrSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errUserGone
		}
		return errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return nil
}

func bearerToken(ctx echo.Context) string {
	h := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(h, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

func getContextClaims(ctx echo.Context) (auth.Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*auth.Claims); ok {
			return *claims, nil
		}
	}
	return auth.Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// getOptionalUser returns nil for anonymous requests.
func getOptionalUser(ctx echo.Context) *user.User {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return &usr
	}
	return nil
}

// rateLimitMiddleware limits the requests per client IP. Limiter failures let requests through.
func rateLimitMiddleware(rl RateLimiter, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			allowed, reset, err := rl.Allow(ctx.Request().Context(), ctx.RealIP())
			if err != nil {
				logger.Warn(fmt.Sprintf("rate limiting: %v", err), err)
				return next(ctx)
			}
			hdr := ctx.Response().Header()
			hdr.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit()))
			if !allowed {
				hdr.Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
				return errTooManyRequest
			}
			return next(ctx)
		}
	}
}

func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}
		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(ctx.Request().Method, route, strconv.Itoa(ctx.Response().Status)).Inc()
		return nil
	}
}
