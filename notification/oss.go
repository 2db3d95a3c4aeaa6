package notification

import (
	"encoding/json"
)

// Event is the payload an OSS trigger delivers to the function:
//
//	{"events": [{"eventName": "ObjectCreated:PutObject",
//	             "oss": {"bucket": {"name": "wallpapers"},
//	                     "object": {"key": "pc/sunset.jpg"}}}]}
type Event struct {
	Events *[]Record `json:"events"`
}

type Record struct {
	EventName   string  `json:"eventName"`
	EventSource string  `json:"eventSource,omitempty"`
	EventTime   string  `json:"eventTime,omitempty"`
	Region      string  `json:"region,omitempty"`
	OSS         OSSInfo `json:"oss"`
}

type OSSInfo struct {
	Bucket BucketInfo `json:"bucket"`
	Object ObjectInfo `json:"object"`
}

type BucketInfo struct {
	Name string `json:"name"`
}

type ObjectInfo struct {
	Key  string `json:"key"`
	Size int64  `json:"size,omitempty"`
	ETag string `json:"eTag,omitempty"`
}

// Decode parses an OSS event payload into a batch and validates it. A
// payload without an events list, or with any incomplete record, is
// rejected whole. An empty events list is a valid, empty batch.
func Decode(payload []byte) (Batch, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, DecodeError(err)
	}
	if event.Events == nil {
		return nil, malformedError("missing %s", fieldEvents)
	}

	batch := make(Batch, 0, len(*event.Events))
	for _, r := range *event.Events {
		batch = append(batch, Notification{
			EventName:  r.EventName,
			BucketName: r.OSS.Bucket.Name,
			ObjectKey:  r.OSS.Object.Key,
		})
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return batch, nil
}
