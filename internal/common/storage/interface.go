package storage

import "context"

// ObjectStorage is the fallback object-store read path for workspace
// staging (spec §4.7, §6): when a source key is absent from the
// TM_S3FS_ROOT mount, internal/workspace fetches it directly from the
// backing object store instead. Trimmed to the read-only surface that
// path actually calls; the teacher's multipart-upload surface served its
// own problem-statement upload flow, which is out of scope here (spec
// §1's "out of scope: ... persistence model" of the front-office API).
type ObjectStorage interface {
	// GetObject opens a reader for an object.
	// Caller must close the returned reader.
	GetObject(ctx context.Context, bucket, objectKey string) (ObjectReader, error)

	// StatObject returns size and ETag for an object, used to size the
	// staged copy before reading it.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectReader is a streaming reader for object data.
type ObjectReader interface {
	Read(p []byte) (int, error)
	Close() error
}

// ObjectStat contains object metadata used for validation.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
