package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Dataset is the historical vitals table the forecaster reads.
type Dataset interface {
	// Values returns the recorded values for (name, feature) in file order
	// and the unit of the first row.
	Values(name, feature string) ([]float64, string)
	// Features lists every feature present, in first-seen order.
	Features() []string
}

// Row is one line of the history table.
type Row struct {
	Name    string
	Feature string
	Value   float64
	Unit    string
}

type seriesKey struct{ name, feature string }

// Table is an in-memory Dataset.
type Table struct {
	values   map[seriesKey][]float64
	units    map[seriesKey]string
	features []string
}

func NewTable(rows []Row) *Table {
	t := &Table{values: make(map[seriesKey][]float64), units: make(map[seriesKey]string)}
	seen := make(map[string]bool)
	for _, r := range rows {
		k := seriesKey{r.Name, r.Feature}
		if _, ok := t.units[k]; !ok {
			t.units[k] = r.Unit
		}
		t.values[k] = append(t.values[k], r.Value)
		if !seen[r.Feature] {
			seen[r.Feature] = true
			t.features = append(t.features, r.Feature)
		}
	}
	return t
}

func (t *Table) Values(name, feature string) ([]float64, string) {
	k := seriesKey{name, feature}
	vals := t.values[k]
	out := make([]float64, len(vals))
	copy(out, vals)
	return out, t.units[k]
}

func (t *Table) Features() []string {
	out := make([]string, len(t.features))
	copy(out, t.features)
	return out
}

// Column names of the history table.
const (
	colName    = "Name"
	colFeature = "Features"
	colValue   = "Values"
	colUnit    = "Unit"
)

// LoadDataset reads a .csv or .xlsx history table.
func LoadDataset(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(f)
	}
	return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
}

// ReadCSV decodes a history table with a Name,Features,Values,Unit header.
// Extra columns, such as a leading index column, are ignored.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return parseRecords(records)
}

// ReadXLSX decodes the first sheet of a workbook laid out like the CSV form.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return parseRecords(rows)
}

func parseRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	idx := make(map[string]int)
	for i, h := range records[0] {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range []string{colName, colFeature, colValue, colUnit} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("dataset header is missing column %q", col)
		}
	}

	cell := func(rec []string, col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := make([]Row, 0, len(records)-1)
	for n, rec := range records[1:] {
		raw := cell(rec, colValue)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid value %q", n+2, raw)
		}
		rows = append(rows, Row{
			Name:    cell(rec, colName),
			Feature: cell(rec, colFeature),
			Value:   v,
			Unit:    cell(rec, colUnit),
		})
	}
	return NewTable(rows), nil
}
