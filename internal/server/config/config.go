// Package config assembles the server configuration from defaults, an
// optional JSON or YAML file, IMG_* environment variables and command-line
// flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hatemjaber/image-resize-server/internal/flagx"
)

const (
	StorageS3     = "s3"
	StorageMemory = "memory"
)

// Config holds runtime settings for the image server.
//
// MasterSecret keys the reference codec and has no default: the server
// refuses to start without it. JWTSecret verifies HS256 bearer tokens on
// the plain-key routes.
type Config struct {
	HTTPAddr            string
	HealthAddrGRPC      string
	MasterSecret        string
	JWTSecret           string
	StorageType         string
	S3RootUser          string
	S3RootPassword      string
	S3Bucket            string
	S3Region            string
	S3BaseEndpoint      string
	S3PathStyle         bool
	MaxUploadBytes      int64
	MaxFilesPerBatch    int
	HealthProbeInterval time.Duration
	LogLevel            string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.HealthAddrGRPC = ":50051"
	c.StorageType = StorageS3
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "images"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.S3PathStyle = true
	c.MaxUploadBytes = 10 << 20
	c.MaxFilesPerBatch = 10
	c.HealthProbeInterval = 10 * time.Second
	c.LogLevel = "info"
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageS3, StorageMemory:
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxFilesPerBatch <= 0 {
		return fmt.Errorf("max files per batch must be positive, got %d", c.MaxFilesPerBatch)
	}
	if c.HealthProbeInterval <= 0 {
		return fmt.Errorf("health probe interval must be positive, got %s", c.HealthProbeInterval)
	}
	return nil
}

// LoadConfig reads the configuration of the running process.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:], os.LookupEnv)
}

// Load builds a Config from args and the environment seen through
// lookupEnv.
func Load(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := flagx.ConfigFile(args); path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg, lookupEnv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
