package connector

import (
	"context"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/datavet/datavet/config"
)

// S3 reads CSV datasets from an S3 bucket. A "table" reference is an object
// key (relative to the configured prefix). Spec parameters: `bucket`
// (required), `region`, `prefix`.
type S3 struct {
	name   string
	bucket string
	prefix string
	region string
	logger zerolog.Logger
	client *s3.S3
}

var _ Connector = (*S3)(nil)

func NewS3(spec config.ConnectionSpec, logger zerolog.Logger) (*S3, error) {
	bucket, err := requireParam(spec, "bucket")
	if err != nil {
		return nil, err
	}
	return &S3{
		name:   spec.Name,
		bucket: bucket,
		prefix: spec.Params["prefix"],
		region: spec.Params["region"],
		logger: logger,
	}, nil
}

func (s *S3) Name() string {
	return s.name
}

func (s *S3) Connect(ctx context.Context) error {
	cfg := aws.Config{}
	if s.region != "" {
		cfg.Region = aws.String(s.region)
	}
	sess, err := session.NewSession(&cfg)
	if err != nil {
		return errors.Wrapf(err, "creating AWS session for %q", s.name)
	}
	s.client = s3.New(sess)
	if _, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	}); err != nil {
		return errors.Wrapf(err, "bucket %q not accessible", s.bucket)
	}
	return nil
}

func (s *S3) Close(ctx context.Context) error {
	s.client = nil
	return nil
}

func (s *S3) key(ref string) string {
	if s.prefix == "" {
		return ref
	}
	return path.Join(s.prefix, ref)
}

func (s *S3) ReadData(ctx context.Context, queryOrTable string, limit int) (*Rows, error) {
	if IsQuery(queryOrTable) {
		return nil, errors.Newf("s3 connector %q does not execute queries; reference an object key", s.name)
	}
	key := s.key(queryOrTable)
	s.logger.Debug().Str("bucket", s.bucket).Str("key", key).Msg("reading s3 object")
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching s3://%s/%s", s.bucket, key)
	}
	defer func() { _ = out.Body.Close() }()
	return readCSV(out.Body, limit)
}

func (s *S3) GetSchema(ctx context.Context, table string) ([]SchemaColumn, error) {
	rows, err := s.ReadData(ctx, table, 1)
	if err != nil {
		return nil, err
	}
	return csvSchema(rows), nil
}

func (s *S3) GetRowCount(ctx context.Context, queryOrTable string) (int64, error) {
	rows, err := s.ReadData(ctx, queryOrTable, 0)
	if err != nil {
		return 0, err
	}
	return int64(rows.NumRows()), nil
}

func (s *S3) TestConnection(ctx context.Context) bool {
	if s.client == nil {
		return false
	}
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	return err == nil
}
