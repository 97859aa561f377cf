package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts either a Go duration string ("10s") or an integer
// number of nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
		return nil
	case string:
		return d.set(val)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return d.set(s)
}

func (d *Duration) set(s string) error {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// fileConfig mirrors Config for decoding. It is seeded from the current
// Config, so keys missing from the file keep their earlier values.
type fileConfig struct {
	HTTPAddr            string   `json:"http_addr" yaml:"http_addr"`
	HealthAddrGRPC      string   `json:"health_addr_grpc" yaml:"health_addr_grpc"`
	MasterSecret        string   `json:"master_secret" yaml:"master_secret"`
	JWTSecret           string   `json:"jwt_secret" yaml:"jwt_secret"`
	StorageType         string   `json:"storage_type" yaml:"storage_type"`
	S3RootUser          string   `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword      string   `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket            string   `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region            string   `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint      string   `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3PathStyle         bool     `json:"s3_path_style" yaml:"s3_path_style"`
	MaxUploadBytes      int64    `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	MaxFilesPerBatch    int      `json:"max_files_per_batch" yaml:"max_files_per_batch"`
	HealthProbeInterval Duration `json:"health_probe_interval" yaml:"health_probe_interval"`
	LogLevel            string   `json:"log_level" yaml:"log_level"`
}

// parseFile overlays cfg with the file at path. The format is picked by
// extension: .yaml and .yml are YAML, anything else is JSON.
func parseFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := fileConfig{
		HTTPAddr:            cfg.HTTPAddr,
		HealthAddrGRPC:      cfg.HealthAddrGRPC,
		MasterSecret:        cfg.MasterSecret,
		JWTSecret:           cfg.JWTSecret,
		StorageType:         cfg.StorageType,
		S3RootUser:          cfg.S3RootUser,
		S3RootPassword:      cfg.S3RootPassword,
		S3Bucket:            cfg.S3Bucket,
		S3Region:            cfg.S3Region,
		S3BaseEndpoint:      cfg.S3BaseEndpoint,
		S3PathStyle:         cfg.S3PathStyle,
		MaxUploadBytes:      cfg.MaxUploadBytes,
		MaxFilesPerBatch:    cfg.MaxFilesPerBatch,
		HealthProbeInterval: Duration{cfg.HealthProbeInterval},
		LogLevel:            cfg.LogLevel,
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.HTTPAddr = fc.HTTPAddr
	cfg.HealthAddrGRPC = fc.HealthAddrGRPC
	cfg.MasterSecret = fc.MasterSecret
	cfg.JWTSecret = fc.JWTSecret
	cfg.StorageType = fc.StorageType
	cfg.S3RootUser = fc.S3RootUser
	cfg.S3RootPassword = fc.S3RootPassword
	cfg.S3Bucket = fc.S3Bucket
	cfg.S3Region = fc.S3Region
	cfg.S3BaseEndpoint = fc.S3BaseEndpoint
	cfg.S3PathStyle = fc.S3PathStyle
	cfg.MaxUploadBytes = fc.MaxUploadBytes
	cfg.MaxFilesPerBatch = fc.MaxFilesPerBatch
	cfg.HealthProbeInterval = fc.HealthProbeInterval.Duration
	cfg.LogLevel = fc.LogLevel
	return nil
}
