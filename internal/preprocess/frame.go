// Package preprocess implements the CSV dataset handling used by the upload
// endpoints: parsing, missing-value imputation, outlier removal and
// standardization.
package preprocess

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Frame is a parsed CSV file: the header row plus raw string cells.
type Frame struct {
	Columns []string
	Rows    [][]string
}

func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	frame := &Frame{
		Columns: records[0],
		Rows:    records[1:],
	}
	return frame, nil
}

func (f *Frame) NumRows() int {
	return len(f.Rows)
}

// FeatureRow parses row i into a feature map, skipping cells that are empty
// or non-numeric so the imputer can fill them downstream.
func (f *Frame) FeatureRow(i int) map[string]float64 {
	features := make(map[string]float64, len(f.Columns))
	row := f.Rows[i]
	for j, name := range f.Columns {
		if j >= len(row) {
			break
		}
		value, err := strconv.ParseFloat(row[j], 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		features[name] = value
	}
	return features
}

// AppendColumns adds new columns with one value per row. Value slices must
// match the row count; short rows are padded first.
func (f *Frame) AppendColumns(names []string, values [][]string) error {
	for _, vals := range values {
		if len(vals) != len(f.Rows) {
			return fmt.Errorf("column length %d does not match row count %d", len(vals), len(f.Rows))
		}
	}

	width := len(f.Columns)
	f.Columns = append(f.Columns, names...)

	for i := range f.Rows {
		for len(f.Rows[i]) < width {
			f.Rows[i] = append(f.Rows[i], "")
		}
		for _, vals := range values {
			f.Rows[i] = append(f.Rows[i], vals[i])
		}
	}
	return nil
}

func (f *Frame) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, row := range f.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// NumericFrame is a column-oriented numeric view of a Frame, with NaN
// marking missing or non-numeric cells.
type NumericFrame struct {
	Columns []string
	Data    map[string][]float64
	numRows int
}

// Numeric extracts the columns where at least half the cells parse as
// numbers; everything else is treated as metadata and dropped.
func (f *Frame) Numeric() *NumericFrame {
	nf := &NumericFrame{
		Data:    make(map[string][]float64),
		numRows: len(f.Rows),
	}

	for j, name := range f.Columns {
		column := make([]float64, len(f.Rows))
		parsed := 0
		for i, row := range f.Rows {
			if j >= len(row) {
				column[i] = math.NaN()
				continue
			}
			value, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				column[i] = math.NaN()
				continue
			}
			column[i] = value
			parsed++
		}
		if len(f.Rows) > 0 && parsed*2 < len(f.Rows) {
			continue
		}
		nf.Columns = append(nf.Columns, name)
		nf.Data[name] = column
	}

	return nf
}

func (nf *NumericFrame) NumRows() int {
	return nf.numRows
}
