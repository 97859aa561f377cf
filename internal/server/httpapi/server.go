// Package httpapi is the HTTP adapter of the image server. It is the only
// place where apperr kinds become status codes.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/hatemjaber/image-resize-server/internal/logging"
	"github.com/hatemjaber/image-resize-server/internal/objstore"
	"github.com/hatemjaber/image-resize-server/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// multipartOverhead is added to the body limit for boundaries and part
// headers.
const multipartOverhead = 1 << 20

// Images is the service surface the handlers use.
type Images interface {
	ResolveReference(token string) (string, error)
	Fetch(ctx context.Context, key, rawSize string) (*objstore.Object, error)
	Upload(ctx context.Context, prefix string, files []services.UploadFile) ([]services.UploadResult, error)
	Replace(ctx context.Context, key string, file services.UploadFile) (*services.UploadResult, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

type Options struct {
	Address        string
	JWTSecret      []byte
	MaxUploadBytes int64
	MaxFiles       int
}

type Server struct {
	opts   Options
	images Images
	logger logging.Logger
	h      *server.Hertz
}

func NewServer(opts Options, l logging.Logger, images Images) *Server {
	s := &Server{
		opts:   opts,
		images: images,
		logger: l.With("module", "http_server"),
	}

	maxBody := int(opts.MaxUploadBytes)*max(opts.MaxFiles, 1) + multipartOverhead
	s.h = server.New(
		server.WithHostPorts(opts.Address),
		server.WithMaxRequestBodySize(maxBody),
		server.WithExitWaitTime(shutdownTimeout),
	)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.h.Use(s.recovery(), s.accessLog())
	s.h.NoRoute(s.notFound)

	s.h.GET("/healthz", s.health)
	s.h.GET("/images", s.getByReference)

	plain := s.h.Group("/images", s.requireAuth())
	plain.GET("/:prefix/*path", s.getByKey)
	plain.POST("/:prefix", s.upload)
	plain.PUT("/:prefix/*path", s.replace)
	plain.DELETE("/:prefix/*path", s.delete)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.opts.Address)
		errCh <- s.h.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.h.Shutdown(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
