package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestS3(t *testing.T) {
	endpoint, bucket := os.Getenv("WATCHPARTY_TEST_S3_ENDPOINT"), os.Getenv("WATCHPARTY_TEST_S3_BUCKET")
	if endpoint == "" || bucket == "" {
		t.Skip("S3 storage is not initialized")
	}
	ctx := context.Background()
	s3, err := NewS3Client(ctx, endpoint, bucket,
		os.Getenv("WATCHPARTY_TEST_S3_KEY"), os.Getenv("WATCHPARTY_TEST_S3_SECRET"))
	if err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(t.TempDir(), "test")
	if err = os.WriteFile(file, []byte("test video"), 0644); err != nil {
		t.Fatal(err)
	}
	if err = s3.Save(ctx, "test", file); err != nil {
		t.Fatal(err)
	}
	dat, err := s3.Load(ctx, "test")
	if err != nil {
		t.Fatal(err)
	}
	if string(dat) != "test video" {
		t.Errorf("got %s", dat)
	}
}
