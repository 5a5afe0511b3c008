package storage

import (
	"context"
	"errors"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Bucket stores run files using gocloud.dev/blob, supporting local
// directories, memory, S3, GCS, Azure Blob Storage, and S3-compatible stores
type Bucket struct {
	bucket *blob.Bucket
	prefix string
}

var ErrFileNotFound = errors.New("file not found in bucket")

// OpenBucket opens the bucket at bucketURL. Every key is stored below prefix
func OpenBucket(ctx context.Context, bucketURL, prefix string) (*Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &Bucket{bucket: bucket, prefix: prefix}, nil
}

func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.bucket.ReadAll(ctx, b.keyFor(key))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *Bucket) Put(ctx context.Context, key string, data []byte) error {
	return b.bucket.WriteAll(ctx, b.keyFor(key), data, nil)
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.bucket.Delete(ctx, b.keyFor(key))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (b *Bucket) Close() error {
	return b.bucket.Close()
}

func (b *Bucket) keyFor(key string) string {
	return b.prefix + key
}
