package httpapi

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/hatemjaber/image-resize-server/internal/apperr"
	"github.com/hatemjaber/image-resize-server/internal/server/auth"
)

const subjectKey = "subject"

// recovery turns a panic into a generic 500 envelope.
func (s *Server) recovery() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error(ctx, "panic recovered", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				s.writeError(ctx, c, fmt.Errorf("panic: %v", r))
			}
		}()

		c.Next(ctx)
	}
}

func (s *Server) accessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		c.Next(ctx)

		s.logger.Info(ctx, "request served",
			"method", string(c.Request.Method()),
			"path", string(c.Request.URI().Path()),
			"status", c.Response.StatusCode(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

// requireAuth accepts only requests with a valid HS256 bearer token. With
// no JWT secret configured every request is rejected.
func (s *Server) requireAuth() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if len(s.opts.JWTSecret) == 0 {
			s.writeError(ctx, c, apperr.Unauthorized("authentication is not configured"))
			return
		}

		token, err := auth.BearerToken(string(c.GetHeader("Authorization")))
		if err != nil {
			s.writeError(ctx, c, apperr.Wrap(apperr.KindAuth, apperr.CodeUnauthorized, "missing bearer token", err))
			return
		}

		claims, err := auth.ParseToken(token, s.opts.JWTSecret)
		if err != nil {
			s.writeError(ctx, c, apperr.Wrap(apperr.KindAuth, apperr.CodeUnauthorized, "invalid or expired token", err))
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Next(ctx)
	}
}
