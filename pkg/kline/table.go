package kline

import (
	"encoding/csv"
	"io"
)

// Table is a decoded CSV archive: a header row plus data rows.
// Rows share the header's column layout; the table itself does not
// validate or reconcile schemas.
type Table struct {
	Header []string
	Rows   [][]string
}

// RowCount returns the number of data rows (header excluded).
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table holds no data rows.
func (t *Table) Empty() bool {
	return t.RowCount() == 0
}

// WriteCSV writes the table (header first) to w in CSV form.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV decodes CSV content into a Table, taking the header from the
// first record. An input with no records yields an empty table.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	return &Table{Header: records[0], Rows: records[1:]}, nil
}
