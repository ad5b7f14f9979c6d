// Package csvrows decodes tabular uploads into raw rows keyed by header.
package csvrows

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
)

// ErrNoHeader is returned for an upload without a header line.
var ErrNoHeader = errors.New("csv upload has no header")

const bom = "\ufeff"

// Reader yields one domain.RawRow per CSV record. The first record is the
// header; header names are trimmed and a leading byte-order mark is dropped.
// Short records leave the missing columns absent, extra cells are ignored.
type Reader struct {
	csv    *csv.Reader
	header []string
	line   int
}

// NewReader wraps r. The header is read lazily on the first Next call.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{csv: cr}
}

// Header returns the parsed column names, or nil before the first Next call.
func (r *Reader) Header() []string {
	return r.header
}

// Next returns the next row, or io.EOF when the input is exhausted.
func (r *Reader) Next() (domain.RawRow, error) {
	if r.header == nil {
		if err := r.readHeader(); err != nil {
			return nil, err
		}
	}

	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read csv record: %w", err)
	}
	r.line++

	row := make(domain.RawRow, len(r.header))
	for i, name := range r.header {
		if i >= len(record) {
			break
		}
		if name == "" {
			continue
		}
		row[name] = record[i]
	}
	return row, nil
}

func (r *Reader) readHeader() error {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return ErrNoHeader
	}
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}

	header := make([]string, len(record))
	for i, name := range record {
		if i == 0 {
			name = strings.TrimPrefix(name, bom)
		}
		header[i] = strings.TrimSpace(name)
	}
	r.header = header
	return nil
}

// Line reports how many data records have been read.
func (r *Reader) Line() int {
	return r.line
}

// ReadAll decodes every row of r.
func ReadAll(r io.Reader) ([]domain.RawRow, error) {
	cr := NewReader(r)
	var rows []domain.RawRow
	for {
		row, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
