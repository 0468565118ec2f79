// Package source loads operator CDR exports (xlsx or csv) into raw records
// for the ingestion pipeline. Header spelling is taken as-is; cleaning it
// up is the resolver's job, not the loader's.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sigintlabs/cdrgraph/engine/domain"
)

// LoadFile reads a CDR export, dispatching on the file extension.
func LoadFile(path string) ([]*domain.RawRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadExcel(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return LoadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}

// LoadExcel reads the first sheet of an xlsx export. The first row is the
// header row; every later row becomes one RawRecord with headers in sheet
// column order.
func LoadExcel(path string) ([]*domain.RawRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return assemble(rows[0], rows[1:]), nil
}

// LoadCSV reads a csv export: first line headers, one record per line.
// Ragged rows are tolerated; missing cells are simply absent.
func LoadCSV(r io.Reader) ([]*domain.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var body [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		body = append(body, row)
	}
	return assemble(header, body), nil
}

// assemble zips header cells with each body row, preserving column order.
// Blank header cells are skipped; short rows leave trailing fields unset.
func assemble(header []string, body [][]string) []*domain.RawRecord {
	records := make([]*domain.RawRecord, 0, len(body))
	for _, cells := range body {
		rec := domain.NewRawRecord()
		for i, h := range header {
			if strings.TrimSpace(h) == "" {
				continue
			}
			if i < len(cells) {
				rec.Set(h, cells[i])
			}
		}
		records = append(records, rec)
	}
	return records
}
