package connector

import (
	"encoding/csv"
	"io"

	"github.com/cockroachdb/errors"
)

// readCSV decodes a CSV stream into Rows. The first record is the header;
// every column is reported as type "string" and empty cells become NULLs,
// matching how file-backed datasets are usually exported.
func readCSV(r io.Reader, limit int) (*Rows, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty CSV: missing header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading CSV header")
	}

	ret := &Rows{
		Columns: header,
		Types:   make([]string, len(header)),
	}
	for i := range ret.Types {
		ret.Types[i] = "string"
	}

	for {
		if limit > 0 && len(ret.Data) >= limit {
			break
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading CSV record")
		}
		row := make([]any, len(rec))
		for i, cell := range rec {
			if cell == "" {
				row[i] = nil
			} else {
				row[i] = cell
			}
		}
		ret.Data = append(ret.Data, row)
	}
	return ret, nil
}

func csvSchema(rows *Rows) []SchemaColumn {
	ret := make([]SchemaColumn, len(rows.Columns))
	for i, name := range rows.Columns {
		ret[i] = SchemaColumn{Name: name, DeclaredType: "string", Nullable: true}
	}
	return ret
}
