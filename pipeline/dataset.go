package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultLabelColumn is the target column of the credit dataset.
const DefaultLabelColumn = "Default"

// Dataset is a labelled table of raw string values. Rows[i][j] is the value
// of Columns[j] for sample i.
type Dataset struct {
	Columns     []string
	LabelColumn string
	Rows        [][]string
	Labels      []int
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Column returns every value of the named feature column.
func (d *Dataset) Column(name string) ([]string, error) {
	j := d.columnIndex(name)
	if j < 0 {
		return nil, fmt.Errorf("dataset has no column %q", name)
	}
	out := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row[j]
	}
	return out, nil
}

// NonNumericColumns returns the columns holding at least one value that
// does not parse as a float, in column order.
func (d *Dataset) NonNumericColumns() []string {
	var out []string
	for j, col := range d.Columns {
		for _, row := range d.Rows {
			if _, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64); err != nil {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// Maps returns each row as a column-name keyed map.
func (d *Dataset) Maps() []map[string]any {
	out := make([]map[string]any, len(d.Rows))
	for i, row := range d.Rows {
		m := make(map[string]any, len(d.Columns))
		for j, col := range d.Columns {
			m[col] = row[j]
		}
		out[i] = m
	}
	return out
}

// Head returns a dataset view of the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	if n > len(d.Rows) || n < 0 {
		n = len(d.Rows)
	}
	return &Dataset{
		Columns:     d.Columns,
		LabelColumn: d.LabelColumn,
		Rows:        d.Rows[:n],
		Labels:      d.Labels[:min(n, len(d.Labels))],
	}
}

func (d *Dataset) columnIndex(name string) int {
	for j, col := range d.Columns {
		if col == name {
			return j
		}
	}
	return -1
}

// ReadCSV loads a dataset whose first row is a header. When the label
// column is absent the dataset is unlabelled, which is enough for
// offline prediction.
func ReadCSV(path, labelColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeCSV(f, labelColumn)
}

func DecodeCSV(r io.Reader, labelColumn string) (*Dataset, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv is empty")
		}
		return nil, err
	}
	labelIdx := -1
	ds := &Dataset{LabelColumn: labelColumn}
	for j, name := range header {
		name = strings.TrimSpace(name)
		if name == labelColumn {
			labelIdx = j
			continue
		}
		ds.Columns = append(ds.Columns, name)
	}

	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		row := make([]string, 0, len(ds.Columns))
		for j, v := range rec {
			if j == labelIdx {
				label, err := strconv.Atoi(strings.TrimSpace(v))
				if err != nil {
					return nil, fmt.Errorf("csv line %d: label %q: %w", line, v, err)
				}
				ds.Labels = append(ds.Labels, label)
				continue
			}
			row = append(row, v)
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// WriteCSV writes the dataset with the label as the last column.
func WriteCSV(path string, ds *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeCSV(f, ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func EncodeCSV(w io.Writer, ds *Dataset) error {
	labelled := len(ds.Labels) == len(ds.Rows) && ds.LabelColumn != ""
	writer := csv.NewWriter(w)
	header := append([]string(nil), ds.Columns...)
	if labelled {
		header = append(header, ds.LabelColumn)
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for i, row := range ds.Rows {
		rec := append([]string(nil), row...)
		if labelled {
			rec = append(rec, strconv.Itoa(ds.Labels[i]))
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
