// Package connector abstracts access to the data platforms a validation run
// reads from. The engine never parses queries or caches data; it hands a
// query or table reference to a Connector and reasons over the returned rows
// and schema metadata.
package connector

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/datavet/datavet/config"
)

// ErrConnection marks connect and read failures. The orchestrator converts
// them into ERROR results for the affected validations.
var ErrConnection = errors.New("connection error")

func markConnection(err error) error {
	return errors.Mark(err, ErrConnection)
}

// SchemaColumn is one column of a table's declared schema.
type SchemaColumn struct {
	Name         string
	DeclaredType string
	Nullable     bool
}

// Rows is an ordered, in-memory tabular result. Types carries the
// platform-reported type name per column, parallel to Columns.
type Rows struct {
	Columns []string
	Types   []string
	Data    [][]any
}

// NumRows returns the number of data rows.
func (r *Rows) NumRows() int {
	if r == nil {
		return 0
	}
	return len(r.Data)
}

// ColumnIndex returns the index of the named column, or -1. Lookup is
// case-insensitive since platforms disagree on identifier casing.
func (r *Rows) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// ColumnValues returns the cell values of the named column in row order.
func (r *Rows) ColumnValues(name string) ([]any, bool) {
	idx := r.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	vals := make([]any, len(r.Data))
	for i, row := range r.Data {
		vals[i] = row[idx]
	}
	return vals, true
}

// Connector is the contract every data platform adapter implements.
// Implementations must be reusable across multiple reads within one run but
// are not assumed safe for concurrent reads; the Registry serializes access.
type Connector interface {
	Name() string
	// Connect establishes the underlying connection. It is called once by
	// the registry, wrapped in the configured retry policy.
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	// ReadData executes a query or reads a table. A limit of 0 means
	// unlimited.
	ReadData(ctx context.Context, queryOrTable string, limit int) (*Rows, error)
	GetSchema(ctx context.Context, table string) ([]SchemaColumn, error)
	GetRowCount(ctx context.Context, queryOrTable string) (int64, error)
	TestConnection(ctx context.Context) bool
}

// IsQuery reports whether a reference is a raw query rather than a table
// identifier. Only the leading keyword is considered, so a table named
// "selections" is not mistaken for a SELECT.
func IsQuery(ref string) bool {
	fields := strings.Fields(ref)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "VALUES":
		return true
	}
	return false
}

// Factory builds a connector from its spec. Custom platforms register a
// Factory at process start; the built-in platforms are always available.
type Factory func(spec config.ConnectionSpec, logger zerolog.Logger) (Connector, error)

var customFactories = map[string]Factory{}

// Register installs a factory for a custom platform kind. Registering a
// built-in kind is an error.
func Register(kind string, f Factory) error {
	kind = strings.ToLower(kind)
	switch kind {
	case "postgres", "cockroach", "mysql", "s3", "gcs", "file":
		return errors.Newf("cannot override built-in connector kind %q", kind)
	}
	customFactories[kind] = f
	return nil
}

// New builds a connector for the spec's platform kind.
func New(spec config.ConnectionSpec, logger zerolog.Logger) (Connector, error) {
	switch strings.ToLower(spec.Kind) {
	case "postgres", "cockroach":
		return NewPostgres(spec, logger)
	case "mysql":
		return NewMySQL(spec, logger)
	case "s3":
		return NewS3(spec, logger)
	case "gcs":
		return NewGCS(spec, logger)
	case "file":
		return NewFile(spec, logger)
	}
	if f, ok := customFactories[strings.ToLower(spec.Kind)]; ok {
		return f(spec, logger)
	}
	return nil, errors.Newf("unrecognised connector type %q for connection %q", spec.Kind, spec.Name)
}

func requireParam(spec config.ConnectionSpec, key string) (string, error) {
	v, ok := spec.Params[key]
	if !ok || v == "" {
		return "", errors.Newf("connection %q: missing required parameter %q", spec.Name, key)
	}
	return v, nil
}
