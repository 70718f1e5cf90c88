package storage

import (
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GoogleCloudClient struct {
	bucket *storage.BucketHandle
}

// NewGoogleCloudClient returns a Google Cloud Storage client.
// Without a credentials file the default application credentials are used.
func NewGoogleCloudClient(ctx context.Context, bucket string, credentials string) (*GoogleCloudClient, error) {
	var opts []option.ClientOption
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleCloudClient{bucket: client.Bucket(bucket)}, nil
}

// Save saves a file to GCS.
func (c *GoogleCloudClient) Save(ctx context.Context, name string, srcFile string) (err error) {
	reader, err := os.Open(srcFile)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	wc := c.bucket.Object(name).NewWriter(ctx)
	if _, err = io.Copy(wc, reader); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

// Load loads file from GCS.
func (c *GoogleCloudClient) Load(ctx context.Context, name string) (data []byte, err error) {
	rc, err := c.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
