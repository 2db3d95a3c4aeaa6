// Package objectstore lists and watches the bucket the wallpapers live in.
//
// Two providers are supported. Aliyun OSS is listed through the OSS SDK and
// raises its events into the function runtime. MinIO and other S3 compatible
// stores are listed through minio-go, which can also stream bucket
// notifications straight to a Watcher.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/datatrails/go-wallpaper-mirror/logger"
)

type Logger = logger.Logger

var (
	ErrList = errors.New("list objects error")
)

// Lister returns the key of every object under prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

func ListError(err error, bucket, prefix string) error {
	return fmt.Errorf("%w %s/%s: %w", ErrList, bucket, prefix, err)
}

// NewLister builds the lister for cfg.Provider.
func NewLister(log Logger, cfg Config) (Lister, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debugf("object store %s", cfg)
	switch cfg.Provider {
	case ProviderS3:
		client, err := NewS3Client(cfg)
		if err != nil {
			return nil, err
		}
		return NewS3Lister(log, client, cfg.Bucket), nil
	default:
		bucket, err := NewOSSBucket(cfg)
		if err != nil {
			return nil, err
		}
		return NewOSSLister(log, bucket, cfg.Bucket), nil
	}
}
