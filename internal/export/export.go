// Package export renders the segmented dataset for download.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/rake220/customer-segmentation/internal/dataset"
)

const (
	SheetName    = "Segments"
	CSVFilename  = "segmented_customers.csv"
	XLSXFilename = "segmented_customers.xlsx"
)

func CSV(d *dataset.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, d); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX writes the header to row 1 and data from row 2. Missing cells stay empty.
func XLSX(d *dataset.Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, name := range d.Columns() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, name); err != nil {
			return nil, fmt.Errorf("failed to write header %s: %w", name, err)
		}
	}

	for r := 0; r < d.NumRows(); r++ {
		for c := 0; c < d.NumColumns(); c++ {
			v := d.Cell(r, c)
			if v.IsMissing() {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v.Value()); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
