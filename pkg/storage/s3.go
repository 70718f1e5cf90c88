package storage

import (
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Client keeps copies in any S3-compatible bucket.
type S3Client struct {
	c      *minio.Client
	bucket string
}

func NewS3Client(ctx context.Context, endpoint, bucket, key, secret string) (*S3Client, error) {
	c, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(key, secret, ""),
		Secure: true,
	})
	if err != nil {
		return nil, err
	}
	exists, err := c.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.New("bucket doesn't exist")
	}
	return &S3Client{c: c, bucket: bucket}, nil
}

func (s *S3Client) Save(ctx context.Context, name string, localPath string) error {
	_, err := s.c.FPutObject(ctx, s.bucket, name, localPath, minio.PutObjectOptions{
		ContentType:    "application/octet-stream",
		SendContentMd5: true,
	})
	return err
}

func (s *S3Client) Load(ctx context.Context, name string) (data []byte, err error) {
	r, err := s.c.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, r.Close()) }()
	return io.ReadAll(r)
}
