package connector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cockroachdb/errors"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/datavet/datavet/config"
)

// MySQL connects through database/sql with the go-sql-driver driver. The
// spec must carry a `dsn` parameter in go-sql-driver DSN form.
type MySQL struct {
	name   string
	dsn    string
	logger zerolog.Logger
	db     *sql.DB
}

var _ Connector = (*MySQL)(nil)

func NewMySQL(spec config.ConnectionSpec, logger zerolog.Logger) (*MySQL, error) {
	dsn, err := requireParam(spec, "dsn")
	if err != nil {
		return nil, err
	}
	return &MySQL{name: spec.Name, dsn: dsn, logger: logger}, nil
}

func (m *MySQL) Name() string {
	return m.name
}

func (m *MySQL) Connect(ctx context.Context) error {
	db, err := sql.Open("mysql", m.dsn)
	if err != nil {
		return errors.Wrapf(err, "opening mysql %q", m.name)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Wrapf(err, "pinging mysql %q", m.name)
	}
	m.db = db
	return nil
}

func (m *MySQL) Close(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

func (m *MySQL) ReadData(ctx context.Context, queryOrTable string, limit int) (*Rows, error) {
	q := asSelect(queryOrTable)
	if limit > 0 {
		q = fmt.Sprintf("SELECT * FROM (%s) _datavet LIMIT %d", q, limit)
	}
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	ret := &Rows{
		Columns: colNames,
		Types:   make([]string, len(colTypes)),
	}
	for i, ct := range colTypes {
		ret.Types[i] = ct.DatabaseTypeName()
	}

	for rows.Next() {
		raw := make([]any, len(colNames))
		ptrs := make([]any, len(colNames))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "error decoding row")
		}
		row := make([]any, len(raw))
		for i, v := range raw {
			// The driver hands back []byte for most types; string form is
			// what the comparison layer coerces from.
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		ret.Data = append(ret.Data, row)
	}
	return ret, rows.Err()
}

func (m *MySQL) GetSchema(ctx context.Context, table string) ([]SchemaColumn, error) {
	rows, err := m.db.QueryContext(
		ctx,
		`SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = database() AND table_name = ?
ORDER BY ordinal_position`,
		table,
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

func (m *MySQL) GetRowCount(ctx context.Context, queryOrTable string) (int64, error) {
	q := fmt.Sprintf("SELECT count(*) FROM (%s) _datavet", asSelect(queryOrTable))
	var n int64
	if err := m.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (m *MySQL) TestConnection(ctx context.Context) bool {
	if m.db == nil {
		return false
	}
	return m.db.PingContext(ctx) == nil
}
