package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/datatrails/go-wallpaper-mirror/environment"
)

const (
	ProviderEnv        = "OBJECTSTORE_PROVIDER"
	EndpointEnv        = "OBJECTSTORE_ENDPOINT"
	AccessKeyIDEnv     = "OBJECTSTORE_ACCESS_KEY_ID"
	AccessKeySecretEnv = "OBJECTSTORE_ACCESS_KEY_SECRET" //nolint:gosec
	BucketEnv          = "OBJECTSTORE_BUCKET"
	UseSSLEnv          = "OBJECTSTORE_USE_SSL"

	ProviderOSS = "oss"
	ProviderS3  = "s3"
)

var (
	ErrUnknownProvider = errors.New("unknown object store provider")
	ErrNoBucket        = errors.New("object store bucket is required")
	ErrNoEndpoint      = errors.New("object store endpoint is required")
)

// Config locates the bucket holding the wallpapers. Provider is "oss" for
// Aliyun OSS or "s3" for MinIO and other S3 compatible stores.
type Config struct {
	Provider        string
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	UseSSL          bool
}

// FromEnv reads the OBJECTSTORE_* variables. Provider defaults to oss.
func FromEnv() (Config, error) {
	cfg := Config{
		Provider:        strings.ToLower(environment.GetWithDefault(ProviderEnv, ProviderOSS)),
		Endpoint:        environment.GetWithDefault(EndpointEnv, ""),
		AccessKeyID:     environment.GetWithDefault(AccessKeyIDEnv, ""),
		AccessKeySecret: environment.GetWithDefault(AccessKeySecretEnv, ""),
		Bucket:          environment.GetWithDefault(BucketEnv, ""),
		UseSSL:          environment.GetTruthy(UseSSLEnv),
	}
	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	switch cfg.Provider {
	case ProviderOSS, ProviderS3:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if cfg.Endpoint == "" {
		return ErrNoEndpoint
	}
	if cfg.Bucket == "" {
		return ErrNoBucket
	}
	return nil
}

// Configured is true when any object store setting is present. The service
// runs without reconcile support otherwise.
func Configured() bool {
	return environment.GetWithDefault(EndpointEnv, "") != "" || environment.GetWithDefault(BucketEnv, "") != ""
}

func (cfg Config) String() string {
	return fmt.Sprintf("%s://%s/%s", cfg.Provider, cfg.Endpoint, cfg.Bucket)
}
