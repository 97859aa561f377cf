package server

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatemjaber/image-resize-server/internal/objstore"
	"github.com/hatemjaber/image-resize-server/internal/server/config"
)

type unreachableStore struct {
	*objstore.MemoryGateway
}

func (unreachableStore) Ping(context.Context, string) error { return errors.New("no such bucket") }

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.MasterSecret = "master"
	c.StorageType = config.StorageMemory
	c.HTTPAddr = "127.0.0.1:0"
	c.HealthAddrGRPC = "127.0.0.1:0"
	return c
}

func TestNewApp_RequiresMasterSecret(t *testing.T) {
	c := testConfig()
	c.MasterSecret = ""

	_, err := NewApp(context.Background(), c, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNoMasterSecret)
}

func TestNewApp_MemoryStore(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.NotNil(t, app.images)
}

func TestNewApp_S3ProbeFailureAborts(t *testing.T) {
	orig := newS3Gateway
	t.Cleanup(func() { newS3Gateway = orig })

	var got objstore.S3Config
	newS3Gateway = func(_ context.Context, c objstore.S3Config) (objstore.Gateway, error) {
		got = c
		return unreachableStore{objstore.NewMemoryGateway()}, nil
	}

	c := testConfig()
	c.StorageType = config.StorageS3
	c.S3BaseEndpoint = "http://minio:9000"

	_, err := NewApp(context.Background(), c, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store probe failed")
	assert.Equal(t, "http://minio:9000", got.BaseEndpoint)
	assert.True(t, got.PathStyle)
}

func TestNewApp_S3InitFailure(t *testing.T) {
	orig := newS3Gateway
	t.Cleanup(func() { newS3Gateway = orig })
	newS3Gateway = func(context.Context, objstore.S3Config) (objstore.Gateway, error) {
		return nil, errors.New("bad credentials")
	}

	c := testConfig()
	c.StorageType = config.StorageS3
	_, err := NewApp(context.Background(), c, &bytes.Buffer{})
	assert.ErrorContains(t, err, "store init error")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	var logs bytes.Buffer
	app, err := NewApp(context.Background(), testConfig(), &syncWriter{w: &logs})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}
