package history

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/pkg/errors"
)

// PutObjectAPI is the subset of *s3.Client the mirror needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror uploads history snapshots to a fixed bucket and key.
type S3Mirror struct {
	client PutObjectAPI
	bucket string
	key    string
}

func NewS3Mirror(client PutObjectAPI, bucket, key string) *S3Mirror {
	return &S3Mirror{client: client, bucket: bucket, key: key}
}

func (m *S3Mirror) Upload(ctx context.Context, snapshot []byte) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key),
		Body:          bytes.NewReader(snapshot),
		ContentLength: aws.Int64(int64(len(snapshot))),
		ContentType:   aws.String(constants.ContentTypeJSON),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to upload history to s3://%s/%s", m.bucket, m.key)
	}
	return nil
}
