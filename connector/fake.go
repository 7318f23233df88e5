package connector

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Fake is an in-memory connector for tests. Datasets are keyed by the exact
// query-or-table reference handed to ReadData.
type Fake struct {
	FakeName   string
	Schemas    map[string][]SchemaColumn
	Datasets   map[string]*Rows
	Counts     map[string]int64
	ConnectErr error
	ReadErr    error
	ReadDelay  time.Duration

	mu    sync.Mutex
	reads int
}

var _ Connector = (*Fake)(nil)

func MakeFake(name string) *Fake {
	return &Fake{
		FakeName: name,
		Schemas:  map[string][]SchemaColumn{},
		Datasets: map[string]*Rows{},
		Counts:   map[string]int64{},
	}
}

func (f *Fake) Name() string {
	return f.FakeName
}

func (f *Fake) Connect(ctx context.Context) error {
	return f.ConnectErr
}

func (f *Fake) Close(ctx context.Context) error {
	return nil
}

// Reads reports how many read operations have been issued.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *Fake) recordRead(ctx context.Context) error {
	f.mu.Lock()
	f.reads++
	f.mu.Unlock()
	if f.ReadErr != nil {
		return f.ReadErr
	}
	if f.ReadDelay > 0 {
		select {
		case <-time.After(f.ReadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (f *Fake) ReadData(ctx context.Context, queryOrTable string, limit int) (*Rows, error) {
	if err := f.recordRead(ctx); err != nil {
		return nil, err
	}
	rows, ok := f.Datasets[queryOrTable]
	if !ok {
		return nil, errors.Newf("no dataset for %q", queryOrTable)
	}
	if limit > 0 && len(rows.Data) > limit {
		truncated := &Rows{Columns: rows.Columns, Types: rows.Types, Data: rows.Data[:limit]}
		return truncated, nil
	}
	return rows, nil
}

func (f *Fake) GetSchema(ctx context.Context, table string) ([]SchemaColumn, error) {
	if err := f.recordRead(ctx); err != nil {
		return nil, err
	}
	schema, ok := f.Schemas[table]
	if !ok {
		return nil, errors.Newf("no schema for %q", table)
	}
	return schema, nil
}

func (f *Fake) GetRowCount(ctx context.Context, queryOrTable string) (int64, error) {
	if err := f.recordRead(ctx); err != nil {
		return 0, err
	}
	if n, ok := f.Counts[queryOrTable]; ok {
		return n, nil
	}
	if rows, ok := f.Datasets[queryOrTable]; ok {
		return int64(rows.NumRows()), nil
	}
	return 0, errors.Newf("no count for %q", queryOrTable)
}

func (f *Fake) TestConnection(ctx context.Context) bool {
	return f.ConnectErr == nil
}

// FakeHandle wraps a Fake in a registry handle for validator tests.
func FakeHandle(f *Fake) *Handle {
	return &Handle{name: f.FakeName, conn: f}
}

// InstallFake plants a pre-built connector into a registry under the given
// logical name, bypassing Resolve's factory path. Test use only.
func (r *Registry) InstallFake(name string, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[name] = &Handle{name: name, conn: c, limiter: r.limiter}
}
