package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseCSV reads a CSV document with a header row. A leading byte order mark is
// honoured (UTF-8 or UTF-16); without one the input is read as UTF-8.
func ParseCSV(r io.Reader) (*Dataset, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("CSV has no columns")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	var rows [][]Cell
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		row := make([]Cell, len(fields))
		for i, field := range fields {
			row[i] = ParseCell(field)
		}
		rows = append(rows, row)
	}

	return New(headers, rows)
}

// WriteCSV writes the header and every row. Missing cells are written as empty fields.
func WriteCSV(w io.Writer, d *Dataset) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(d.columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(d.columns))
	for _, row := range d.rows {
		for j, cell := range row {
			record[j] = cell.String()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
