package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Config selects and configures a blob driver.
type Config struct {
	Driver Driver   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// ConfigFromEnv overlays environment variables on base.
//
//	TWIDO_BLOB_DRIVER: fs|s3|memory (default fs)
//	TWIDO_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	TWIDO_BLOB_S3_BUCKET, TWIDO_BLOB_S3_REGION, TWIDO_BLOB_S3_ENDPOINT,
//	TWIDO_BLOB_S3_PATH_STYLE: S3 settings when driver=s3
func ConfigFromEnv(base Config) Config {
	cfg := base
	if v := os.Getenv("TWIDO_BLOB_DRIVER"); v != "" {
		cfg.Driver = Driver(v)
	}
	if v := os.Getenv("TWIDO_BLOB_FS_ROOT"); v != "" {
		cfg.FSRoot = v
	}
	if v := os.Getenv("TWIDO_BLOB_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("TWIDO_BLOB_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("TWIDO_BLOB_S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := os.Getenv("TWIDO_BLOB_S3_PATH_STYLE"); v != "" {
		cfg.S3.PathStyle = strings.EqualFold(v, "true")
	}
	return cfg
}

// Open selects a blob.Store implementation for cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
