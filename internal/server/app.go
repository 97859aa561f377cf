// Package server wires the configuration, object store, reference codec and
// services together and runs the HTTP API next to the gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hatemjaber/image-resize-server/internal/cryptox"
	"github.com/hatemjaber/image-resize-server/internal/imaging"
	"github.com/hatemjaber/image-resize-server/internal/logging"
	"github.com/hatemjaber/image-resize-server/internal/objstore"
	"github.com/hatemjaber/image-resize-server/internal/server/config"
	"github.com/hatemjaber/image-resize-server/internal/server/httpapi"
	"github.com/hatemjaber/image-resize-server/internal/server/services"

	gs "github.com/hatemjaber/image-resize-server/internal/server/grpc"
)

var ErrNoMasterSecret = errors.New("master secret is not configured")

// newS3Gateway is swapped in tests.
var newS3Gateway = func(ctx context.Context, c objstore.S3Config) (objstore.Gateway, error) {
	return objstore.NewS3Gateway(ctx, c)
}

type App struct {
	config *config.Config
	logger logging.Logger
	images *services.ImageService
}

// NewApp builds the application. It fails when the master secret is empty
// or the object store cannot be reached, so a misconfigured process never
// starts serving.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger := logging.NewJSON(out, c.LogLevel)

	if c.MasterSecret == "" {
		return nil, ErrNoMasterSecret
	}
	codec, err := cryptox.NewCodec([]byte(c.MasterSecret), cryptox.WithLogger(logger.With("module", "codec")))
	if err != nil {
		return nil, fmt.Errorf("codec init error: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	if err := store.Ping(ctx, c.S3Bucket); err != nil {
		return nil, fmt.Errorf("store probe failed for bucket %q: %w", c.S3Bucket, err)
	}

	limits := services.UploadLimits{MaxFileSize: c.MaxUploadBytes, MaxFiles: c.MaxFilesPerBatch}
	images := services.NewImageService(store, c.S3Bucket, codec, imaging.NewDrawResizer(), limits, logger)

	return &App{config: c, logger: logger, images: images}, nil
}

func newStore(ctx context.Context, c *config.Config) (objstore.Gateway, error) {
	switch c.StorageType {
	case config.StorageMemory:
		return objstore.NewMemoryGateway(), nil
	case config.StorageS3:
		return newS3Gateway(ctx, objstore.S3Config{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			PathStyle:    c.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", c.StorageType)
	}
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(httpapi.Options{
		Address:        app.config.HTTPAddr,
		JWTSecret:      []byte(app.config.JWTSecret),
		MaxUploadBytes: app.config.MaxUploadBytes,
		MaxFiles:       app.config.MaxFilesPerBatch,
	}, app.logger, app.images)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.HealthAddrGRPC, app.logger, app.images, app.config.HealthProbeInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or one of the
// servers fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHealthServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(ctx, "App stopped")
}
