// Package roster turns uploaded member lists into roster changes: parse a
// file, normalize its rows, then preview or commit the diff against the
// stored roster.
package roster

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"paylog/internal/core"
)

// Column names every roster must provide after header normalization.
const (
	ColumnID        = "id"
	ColumnFirstName = "first_name"
	ColumnLastName  = "last_name"
)

// Kind identifies an upload format.
type Kind string

const (
	KindCSV    Kind = "csv"
	KindXLSX   Kind = "xlsx"
	KindValues Kind = "json" // a JSON encoded [][]any matrix
)

// RawRow is one data row keyed by normalized header. Only the required
// columns are kept.
type RawRow struct {
	ID        string
	FirstName string
	LastName  string
}

// Parser reads a roster file into raw rows.
type Parser interface {
	Parse(r io.Reader) ([]RawRow, error)
}

// ParserFor returns the parser for kind.
func ParserFor(kind Kind) (Parser, error) {
	switch kind {
	case KindCSV:
		return CSVParser{}, nil
	case KindXLSX:
		return XLSXParser{}, nil
	case KindValues:
		return ValuesParser{}, nil
	default:
		return nil, core.ErrUnsupportedFile
	}
}

// KindFromFilename maps a file extension to a Kind.
func KindFromFilename(name string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".csv":
		return KindCSV, nil
	case ".xlsx":
		return KindXLSX, nil
	case ".json":
		return KindValues, nil
	default:
		return "", core.ErrUnsupportedFile
	}
}

// NormalizeHeader trims, lower-cases and joins whitespace runs with "_".
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}

type CSVParser struct{}

func (CSVParser) Parse(r io.Reader) ([]RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv: %v", core.ErrValidation, err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return fromTable(records), nil
}

// XLSXParser reads the first sheet of a workbook.
type XLSXParser struct{}

func (XLSXParser) Parse(r io.Reader) ([]RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", core.ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", core.ErrValidation, sheets[0], err)
	}
	return fromTable(rows), nil
}

// ValuesParser reads a cell matrix as returned by the Google Sheets values
// API, either JSON encoded through Parse or directly through ParseValues.
type ValuesParser struct{}

func (p ValuesParser) Parse(r io.Reader) ([]RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	var values [][]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		// Also accept the full API response object.
		var resp struct {
			Values [][]any `json:"values"`
		}
		dec = json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err2 := dec.Decode(&resp); err2 != nil {
			return nil, fmt.Errorf("%w: decode values: %v", core.ErrValidation, errors.Join(err, err2))
		}
		values = resp.Values
	}
	return p.ParseValues(values), nil
}

// ParseValues converts a cell matrix whose first row is the header.
func (ValuesParser) ParseValues(values [][]any) []RawRow {
	table := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		table[i] = cells
	}
	return fromTable(table)
}

// fromTable maps a header row plus data rows into RawRows. A header missing
// a required column yields no rows; data rows missing a value are dropped.
func fromTable(table [][]string) []RawRow {
	if len(table) < 2 {
		return nil
	}
	idx := map[string]int{}
	for i, h := range table[0] {
		key := NormalizeHeader(h)
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	idCol, ok1 := idx[ColumnID]
	firstCol, ok2 := idx[ColumnFirstName]
	lastCol, ok3 := idx[ColumnLastName]
	if !ok1 || !ok2 || !ok3 {
		return nil
	}

	rows := make([]RawRow, 0, len(table)-1)
	for _, rec := range table[1:] {
		row := RawRow{
			ID:        cell(rec, idCol),
			FirstName: cell(rec, firstCol),
			LastName:  cell(rec, lastCol),
		}
		if row.ID == "" || row.FirstName == "" || row.LastName == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
