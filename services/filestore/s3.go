package filestore

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/proof"
)

type (
	uploader interface {
		Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
	}

	deleter interface {
		DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	}

	S3 struct {
		bucket   string
		uploader uploader
		deleter  deleter
	}
)

var _ proof.FileStore = (*S3)(nil) // interface compliance check

// NewS3 stores files in conf.Storage.S3Bucket, credentials come from the default AWS chain.
func NewS3(ctx context.Context, conf *core.Config) (*S3, error) {
	if conf.Storage.S3Bucket == "" {
		return nil, errors.New("no S3 bucket configured")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.Storage.S3Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	client := s3.NewFromConfig(cfg)
	return &S3{bucket: conf.Storage.S3Bucket, uploader: manager.NewUploader(client), deleter: client}, nil
}

func (s *S3) Save(ctx context.Context, key string, upload proof.Upload) (proof.FileRef, error) {
	k, err := cleanKey(key)
	if err != nil {
		return proof.FileRef{}, err
	}
	ref := fileRef(k, upload)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(upload.Data),
		ContentType:   aws.String(ref.ContentType),
		ContentLength: aws.Int64(ref.Size),
	})
	if err != nil {
		return proof.FileRef{}, errors.Wrapf(err, "uploading %s", k)
	}
	return ref, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(k)})
	return errors.Wrapf(err, "deleting %s", k)
}
