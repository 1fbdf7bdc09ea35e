package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Driver identifies a concrete artifact storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory (default)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible bucket
	DriverMemory     Driver = "memory" // in-process (tests)
)

// Fixed artifact keys produced by the training pipeline.
const (
	KeyGLP1Encoder = "glp1_encoder.json"
	KeyGLP1Model   = "model_glp1_diabetes_rf.json"
	KeyMSModel     = "model_ms_rf.json"
)

// Store reads trained artifacts. Open must return an error satisfying
// errors.Is(err, fs.ErrNotExist) when the key does not exist.
type Store interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Driver() Driver
}

// Options configures Open.
type Options struct {
	Driver    Driver
	Root      string // fs: directory, s3: optional key prefix
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// Environment overrides applied by OptionsFromEnv.
//
//	PEPTOPT_ARTIFACT_DRIVER:   fs|s3|memory
//	PEPTOPT_ARTIFACT_ROOT:     directory (fs) or key prefix (s3)
//	PEPTOPT_ARTIFACT_BUCKET:   bucket name (s3)
//	PEPTOPT_ARTIFACT_REGION:   region (s3, default us-east-1)
//	PEPTOPT_ARTIFACT_ENDPOINT: custom endpoint, e.g. MinIO (s3)
const envPrefix = "PEPTOPT_ARTIFACT_"

// OptionsFromEnv overlays environment settings onto base.
func OptionsFromEnv(base Options) Options {
	if v := os.Getenv(envPrefix + "DRIVER"); v != "" {
		base.Driver = Driver(v)
	}
	if v := os.Getenv(envPrefix + "ROOT"); v != "" {
		base.Root = v
	}
	if v := os.Getenv(envPrefix + "BUCKET"); v != "" {
		base.Bucket = v
	}
	if v := os.Getenv(envPrefix + "REGION"); v != "" {
		base.Region = v
	}
	if v := os.Getenv(envPrefix + "ENDPOINT"); v != "" {
		base.Endpoint = v
	}
	if v := os.Getenv(envPrefix + "PATH_STYLE"); v != "" {
		base.PathStyle = strings.EqualFold(v, "true")
	}
	return base
}

// Open selects a Store implementation.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(opts.Root), nil
	case DriverS3:
		return NewS3(ctx, opts)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown artifact driver: %s", driver)
	}
}
