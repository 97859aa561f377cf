package config

import (
	"fmt"
	"strconv"
	"time"
)

// parseEnv overlays cfg with IMG_* variables. Unset variables are skipped;
// set but malformed numeric values are an error.
func parseEnv(cfg *Config, lookupEnv func(string) (string, bool)) error {
	strs := map[string]*string{
		"IMG_HTTP_ADDR":        &cfg.HTTPAddr,
		"IMG_HEALTH_ADDR_GRPC": &cfg.HealthAddrGRPC,
		"IMG_MASTER_SECRET":    &cfg.MasterSecret,
		"IMG_JWT_SECRET":       &cfg.JWTSecret,
		"IMG_STORAGE_TYPE":     &cfg.StorageType,
		"IMG_S3_ROOT_USER":     &cfg.S3RootUser,
		"IMG_S3_ROOT_PASSWORD": &cfg.S3RootPassword,
		"IMG_S3_BUCKET":        &cfg.S3Bucket,
		"IMG_S3_REGION":        &cfg.S3Region,
		"IMG_S3_BASE_ENDPOINT": &cfg.S3BaseEndpoint,
		"IMG_LOG_LEVEL":        &cfg.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := lookupEnv(name); ok {
			*dst = v
		}
	}

	if v, ok := lookupEnv("IMG_S3_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("IMG_S3_PATH_STYLE: %w", err)
		}
		cfg.S3PathStyle = b
	}
	if v, ok := lookupEnv("IMG_MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("IMG_MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	if v, ok := lookupEnv("IMG_MAX_FILES_PER_BATCH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMG_MAX_FILES_PER_BATCH: %w", err)
		}
		cfg.MaxFilesPerBatch = n
	}
	if v, ok := lookupEnv("IMG_HEALTH_PROBE_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("IMG_HEALTH_PROBE_INTERVAL: %w", err)
		}
		cfg.HealthProbeInterval = d
	}
	return nil
}
