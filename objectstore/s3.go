package objectstore

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	s3notify "github.com/minio/minio-go/v7/pkg/notification"
)

// S3Client is the part of *minio.Client used for listing and watching.
type S3Client interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	ListenBucketNotification(ctx context.Context, bucketName, prefix, suffix string, events []string) <-chan s3notify.Info
}

// NewS3Client returns a minio-go client for an S3 compatible endpoint.
func NewS3Client(cfg Config) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client %s: %w", cfg.Endpoint, err)
	}
	return client, nil
}

type S3Lister struct {
	log    Logger
	client S3Client
	bucket string
}

func NewS3Lister(log Logger, client S3Client, bucket string) *S3Lister {
	return &S3Lister{
		log:    log.WithIndex("bucket", bucket),
		client: client,
		bucket: bucket,
	}
}

// List walks everything under prefix, including nested folders.
func (l *S3Lister) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	// stops the listing goroutine if we return early
	defer cancel()

	var keys []string
	objects := l.client.ListObjects(ctx, l.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objects {
		if object.Err != nil {
			return nil, ListError(object.Err, l.bucket, prefix)
		}
		keys = append(keys, object.Key)
	}
	l.log.Debugf("s3 listing under %s: %d keys", prefix, len(keys))
	return keys, nil
}
