package server

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ginger-society/ginger-ws/internal/auth"
	apperrors "github.com/ginger-society/ginger-ws/internal/errors"
	"github.com/ginger-society/ginger-ws/internal/logging"
)

const correlationHeader = "X-Correlation-ID"

// Context keys for values stashed by the auth middleware.
const (
	ctxUserClaims    = "userClaims"
	ctxAPIClaims     = "apiClaims"
	ctxServiceClaims = "serviceClaims"
	ctxRawToken      = "rawToken"
)

// correlationMiddleware assigns every request a correlation id, honoring
// one supplied by the caller, so log lines across the request can be tied
// together.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(correlationHeader)
			if id == "" {
				id = uuid.NewString()
			}

			ctx := logging.WithCorrelationID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(correlationHeader, id)

			return next(c)
		}
	}
}

// Each credential kind has its own header and its own validator. A token
// presented on the wrong header is rejected, never retried against another
// validator.

func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := auth.StripBearer(c.Request().Header.Get(auth.HeaderFor[auth.KindUser]))
		if raw == "" {
			return apperrors.UnauthorizedError("missing credentials")
		}

		claims, err := s.validator.ValidateUser(raw)
		if err != nil {
			return apperrors.UnauthorizedError("invalid credentials")
		}

		c.Set(ctxUserClaims, claims)
		c.Set(ctxRawToken, raw)
		return next(c)
	}
}

func (s *Server) requireAPI(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := auth.StripBearer(c.Request().Header.Get(auth.HeaderFor[auth.KindAPI]))
		if raw == "" {
			return apperrors.UnauthorizedError("missing credentials")
		}

		claims, err := s.validator.ValidateAPI(raw)
		if err != nil {
			return apperrors.UnauthorizedError("invalid credentials")
		}

		c.Set(ctxAPIClaims, claims)
		c.Set(ctxRawToken, raw)
		return next(c)
	}
}

func (s *Server) requireService(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := auth.StripBearer(c.Request().Header.Get(auth.HeaderFor[auth.KindService]))
		if raw == "" {
			return apperrors.UnauthorizedError("missing credentials")
		}

		claims, err := s.validator.ValidateService(raw)
		if err != nil {
			return apperrors.UnauthorizedError("invalid credentials")
		}

		c.Set(ctxServiceClaims, claims)
		c.Set(ctxRawToken, raw)
		return next(c)
	}
}
