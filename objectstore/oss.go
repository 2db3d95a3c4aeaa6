package objectstore

import (
	"context"
	"fmt"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSS returns at most 1000 keys per page.
const ossPageSize = 1000

// OSSBucket is the part of *oss.Bucket the lister needs.
type OSSBucket interface {
	ListObjects(options ...oss.Option) (oss.ListObjectsResult, error)
}

// NewOSSBucket connects to the configured Aliyun OSS bucket.
func NewOSSBucket(cfg Config) (*oss.Bucket, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client %s: %w", cfg.Endpoint, err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", cfg.Bucket, err)
	}
	return bucket, nil
}

type OSSLister struct {
	log    Logger
	bucket OSSBucket
	name   string
}

func NewOSSLister(log Logger, bucket OSSBucket, name string) *OSSLister {
	return &OSSLister{
		log:    log.WithIndex("bucket", name),
		bucket: bucket,
		name:   name,
	}
}

// List pages through the bucket with markers until the listing is no longer
// truncated.
func (l *OSSLister) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	marker := ""
	for page := 0; ; page++ {
		result, err := l.bucket.ListObjects(
			oss.WithContext(ctx),
			oss.Marker(marker),
			oss.Prefix(prefix),
			oss.MaxKeys(ossPageSize),
		)
		if err != nil {
			return nil, ListError(err, l.name, prefix)
		}
		for _, object := range result.Objects {
			keys = append(keys, object.Key)
		}
		l.log.Debugf("oss page %d under %s: %d keys", page, prefix, len(result.Objects))
		if !result.IsTruncated {
			return keys, nil
		}
		marker = result.NextMarker
	}
}
