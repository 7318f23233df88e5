package connector

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/datavet/datavet/config"
)

// File reads CSV datasets from the local filesystem, rooted at the `dir`
// parameter. Mostly useful for smoke-testing configs against extracts.
type File struct {
	name   string
	dir    string
	logger zerolog.Logger
}

var _ Connector = (*File)(nil)

func NewFile(spec config.ConnectionSpec, logger zerolog.Logger) (*File, error) {
	dir, err := requireParam(spec, "dir")
	if err != nil {
		return nil, err
	}
	return &File{name: spec.Name, dir: dir, logger: logger}, nil
}

func (f *File) Name() string {
	return f.name
}

func (f *File) Connect(ctx context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return errors.Wrapf(err, "stat %q", f.dir)
	}
	if !info.IsDir() {
		return errors.Newf("%q is not a directory", f.dir)
	}
	return nil
}

func (f *File) Close(ctx context.Context) error {
	return nil
}

func (f *File) ReadData(ctx context.Context, queryOrTable string, limit int) (*Rows, error) {
	if IsQuery(queryOrTable) {
		return nil, errors.Newf("file connector %q does not execute queries; reference a file path", f.name)
	}
	fh, err := os.Open(filepath.Join(f.dir, queryOrTable))
	if err != nil {
		return nil, err
	}
	defer func() { _ = fh.Close() }()
	return readCSV(fh, limit)
}

func (f *File) GetSchema(ctx context.Context, table string) ([]SchemaColumn, error) {
	rows, err := f.ReadData(ctx, table, 1)
	if err != nil {
		return nil, err
	}
	return csvSchema(rows), nil
}

func (f *File) GetRowCount(ctx context.Context, queryOrTable string) (int64, error) {
	rows, err := f.ReadData(ctx, queryOrTable, 0)
	if err != nil {
		return 0, err
	}
	return int64(rows.NumRows()), nil
}

func (f *File) TestConnection(ctx context.Context) bool {
	_, err := os.Stat(f.dir)
	return err == nil
}
