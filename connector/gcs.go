package connector

import (
	"context"
	"path"

	"cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/datavet/datavet/config"
)

// GCS reads CSV datasets from a Google Cloud Storage bucket. Spec parameters:
// `bucket` (required), `prefix`. Credentials come from the ambient
// application-default chain.
type GCS struct {
	name   string
	bucket string
	prefix string
	logger zerolog.Logger
	client *storage.Client
}

var _ Connector = (*GCS)(nil)

func NewGCS(spec config.ConnectionSpec, logger zerolog.Logger) (*GCS, error) {
	bucket, err := requireParam(spec, "bucket")
	if err != nil {
		return nil, err
	}
	return &GCS{
		name:   spec.Name,
		bucket: bucket,
		prefix: spec.Params["prefix"],
		logger: logger,
	}, nil
}

func (g *GCS) Name() string {
	return g.name
}

func (g *GCS) Connect(ctx context.Context) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return errors.Wrapf(err, "creating GCS client for %q", g.name)
	}
	if _, err := client.Bucket(g.bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return errors.Wrapf(err, "bucket %q not accessible", g.bucket)
	}
	g.client = client
	return nil
}

func (g *GCS) Close(ctx context.Context) error {
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

func (g *GCS) key(ref string) string {
	if g.prefix == "" {
		return ref
	}
	return path.Join(g.prefix, ref)
}

func (g *GCS) ReadData(ctx context.Context, queryOrTable string, limit int) (*Rows, error) {
	if IsQuery(queryOrTable) {
		return nil, errors.Newf("gcs connector %q does not execute queries; reference an object key", g.name)
	}
	key := g.key(queryOrTable)
	g.logger.Debug().Str("bucket", g.bucket).Str("key", key).Msg("reading gcs object")
	rc, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching gs://%s/%s", g.bucket, key)
	}
	defer func() { _ = rc.Close() }()
	return readCSV(rc, limit)
}

func (g *GCS) GetSchema(ctx context.Context, table string) ([]SchemaColumn, error) {
	rows, err := g.ReadData(ctx, table, 1)
	if err != nil {
		return nil, err
	}
	return csvSchema(rows), nil
}

func (g *GCS) GetRowCount(ctx context.Context, queryOrTable string) (int64, error) {
	rows, err := g.ReadData(ctx, queryOrTable, 0)
	if err != nil {
		return 0, err
	}
	return int64(rows.NumRows()), nil
}

func (g *GCS) TestConnection(ctx context.Context) bool {
	if g.client == nil {
		return false
	}
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	return err == nil
}
