package notification

import (
	"net/url"
	"strings"

	s3notify "github.com/minio/minio-go/v7/pkg/notification"
)

// S3 compatible stores prefix event names with "s3:".
const s3EventPrefix = "s3:"

// FromS3Records converts bucket notification records from an S3 compatible
// store (e.g. MinIO). Event names lose their "s3:" prefix and object keys,
// which S3 delivers URL encoded, are decoded.
func FromS3Records(records []s3notify.Event) (Batch, error) {
	batch := make(Batch, 0, len(records))
	for i, r := range records {
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, malformedError("record %d: object key %q: %w", i, r.S3.Object.Key, err)
		}
		batch = append(batch, Notification{
			EventName:  strings.TrimPrefix(r.EventName, s3EventPrefix),
			BucketName: r.S3.Bucket.Name,
			ObjectKey:  key,
		})
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return batch, nil
}
