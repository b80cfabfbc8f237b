package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
)

// ErrNoColumns is returned when a table has nothing to render.
var ErrNoColumns = errors.New("export requires at least one column")

// Column maps a record field to its printed heading.
type Column struct {
	Key   string
	Title string
	// Width is a relative weight used by the PDF renderer; zero means 1.
	Width float64
}

// Table is the tabular payload shared by every renderer.
type Table struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return ErrNoColumns
	}
	return nil
}

func (t Table) record(row map[string]string) []string {
	record := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		record[i] = row[col.Key]
	}
	return record
}

// CSVRenderer writes tables as RFC 4180 CSV.
type CSVRenderer struct{}

// NewCSVRenderer builds a CSV renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

// ContentType is the MIME type of the rendered output.
func (r *CSVRenderer) ContentType() string { return "text/csv" }

// Extension is the download file extension.
func (r *CSVRenderer) Extension() string { return "csv" }

// Render encodes the table; the first line holds column titles.
func (r *CSVRenderer) Render(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	titles := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		titles[i] = col.Title
	}
	if err := writer.Write(titles); err != nil {
		return nil, fmt.Errorf("write csv titles: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(table.record(row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
