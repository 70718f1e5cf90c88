// Package storage keeps copies of the shared media in a cloud bucket.
package storage

import (
	"context"

	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
)

type CloudStorage interface {
	Save(ctx context.Context, name string, localPath string) error
	Load(ctx context.Context, name string) ([]byte, error)
}

// New picks a storage by the mirror config or the noop one.
func New(ctx context.Context, conf config.Media, log *logger.Logger) CloudStorage {
	var (
		st  CloudStorage
		err error
	)
	switch {
	case conf.Mirror.Bucket != "":
		st, err = NewGoogleCloudClient(ctx, conf.Mirror.Bucket, conf.Mirror.Credentials)
	case conf.Mirror.S3.Bucket != "":
		s3 := conf.Mirror.S3
		st, err = NewS3Client(ctx, s3.Endpoint, s3.Bucket, s3.Key, s3.Secret)
	case conf.Mirror.Oracle != "":
		st, err = NewOracleDataStorageClient(conf.Mirror.Oracle)
	default:
		return NewNoopCloudStorage()
	}
	if err != nil {
		log.Warn().Err(err).Msg("Cloud storage is not available")
		return NewNoopCloudStorage()
	}
	log.Info().Msgf("Uploads are mirrored to %T", st)
	return st
}
