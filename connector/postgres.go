package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/datavet/datavet/config"
)

// Postgres connects to PostgreSQL or CockroachDB through pgx.
type Postgres struct {
	name    string
	connStr string
	logger  zerolog.Logger
	conn    *pgx.Conn
}

var _ Connector = (*Postgres)(nil)

// NewPostgres builds a Postgres connector from a connection spec. The spec
// must carry a `url` parameter.
func NewPostgres(spec config.ConnectionSpec, logger zerolog.Logger) (*Postgres, error) {
	connStr, err := requireParam(spec, "url")
	if err != nil {
		return nil, err
	}
	return &Postgres{name: spec.Name, connStr: connStr, logger: logger}, nil
}

func (p *Postgres) Name() string {
	return p.name
}

func (p *Postgres) Connect(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, p.connStr)
	if err != nil {
		return errors.Wrapf(err, "connecting to postgres %q", p.name)
	}
	p.conn = conn
	return nil
}

func (p *Postgres) Close(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close(ctx)
	p.conn = nil
	return err
}

func (p *Postgres) ReadData(ctx context.Context, queryOrTable string, limit int) (*Rows, error) {
	q := asSelect(queryOrTable)
	if limit > 0 {
		q = fmt.Sprintf("SELECT * FROM (%s) _datavet LIMIT %d", q, limit)
	}
	rows, err := p.conn.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	ret := &Rows{
		Columns: make([]string, len(fds)),
		Types:   make([]string, len(fds)),
	}
	for i, fd := range fds {
		ret.Columns[i] = fd.Name
		if typ, ok := p.conn.TypeMap().TypeForOID(fd.DataTypeOID); ok {
			ret.Types[i] = typ.Name
		} else {
			ret.Types[i] = fmt.Sprintf("oid:%d", fd.DataTypeOID)
		}
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, "error decoding row")
		}
		row := make([]any, len(vals))
		copy(row, vals)
		ret.Data = append(ret.Data, row)
	}
	return ret, rows.Err()
}

func (p *Postgres) GetSchema(ctx context.Context, table string) ([]SchemaColumn, error) {
	schema, name := splitTableName(table, "public")
	rows, err := p.conn.Query(
		ctx,
		`SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`,
		schema, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []SchemaColumn
	for rows.Next() {
		var col SchemaColumn
		var nullable string
		if err := rows.Scan(&col.Name, &col.DeclaredType, &nullable); err != nil {
			return nil, errors.Wrap(err, "error decoding column metadata")
		}
		col.Nullable = nullable == "YES"
		ret = append(ret, col)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(ret) == 0 {
		return nil, errors.Newf("table %q not found", table)
	}
	return ret, nil
}

func (p *Postgres) GetRowCount(ctx context.Context, queryOrTable string) (int64, error) {
	q := fmt.Sprintf("SELECT count(*) FROM (%s) _datavet", asSelect(queryOrTable))
	var n int64
	if err := p.conn.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Postgres) TestConnection(ctx context.Context) bool {
	if p.conn == nil {
		return false
	}
	return p.conn.Ping(ctx) == nil
}

// asSelect turns a table identifier into a SELECT; raw queries pass through.
func asSelect(ref string) string {
	if IsQuery(ref) {
		return ref
	}
	return "SELECT * FROM " + ref
}

func splitTableName(table, defaultSchema string) (schema, name string) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return defaultSchema, table
}
