package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/datavet/datavet/validate/result"
)

// JSONReporter writes the full run summary as indented JSON, to a file when a
// path is configured or to stdout otherwise.
type JSONReporter struct {
	path string
	out  io.Writer
}

func NewJSON(path string) (*JSONReporter, error) {
	return &JSONReporter{path: path}, nil
}

// NewJSONWriter writes to an arbitrary writer, for tests.
func NewJSONWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{out: w}
}

func (j *JSONReporter) Report(summary *result.RunSummary) error {
	out := j.out
	if out == nil {
		if j.path == "" {
			out = os.Stdout
		} else {
			if dir := filepath.Dir(j.path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return errors.Wrap(err, "creating report directory")
				}
			}
			f, err := os.Create(j.path)
			if err != nil {
				return errors.Wrap(err, "creating report file")
			}
			defer f.Close()
			out = f
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(summary), "encoding report")
}
