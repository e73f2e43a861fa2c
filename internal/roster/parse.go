package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const sniffSize = 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a roster upload, choosing the format from the file extension.
// Anything that is not .xlsx is read as delimited text.
func Parse(filename string, data []byte) ([]map[string]string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return ParseXLSX(bytes.NewReader(data))
	}
	return ParseCSV(data)
}

// DetectDelimiter picks ';' when it appears in the first KiB, ',' otherwise.
func DetectDelimiter(data []byte) rune {
	sample := data
	if len(sample) > sniffSize {
		sample = sample[:sniffSize]
	}
	if bytes.IndexByte(sample, ';') >= 0 {
		return ';'
	}
	return ','
}

// ParseCSV reads delimited text with a header row. Values and headers are
// trimmed, a leading BOM is dropped, blank lines are skipped and short rows
// leave missing columns empty.
func ParseCSV(data []byte) ([]map[string]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = DetectDelimiter(data)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyRoster
		}
		return nil, fmt.Errorf("read roster header: %w", err)
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster row: %w", err)
		}
		if row := toRow(header, record); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ParseXLSX reads the first worksheet of a workbook, first row as header.
func ParseXLSX(r io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyRoster
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyRoster
	}

	header := records[0]
	var rows []map[string]string
	for _, record := range records[1:] {
		if row := toRow(header, record); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// toRow zips a record onto the header. Rows where every cell is blank come
// back nil.
func toRow(header, record []string) map[string]string {
	row := make(map[string]string, len(header))
	blank := true
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		var v string
		if i < len(record) {
			v = strings.TrimSpace(record[i])
		}
		if v != "" {
			blank = false
		}
		row[h] = v
	}
	if blank {
		return nil
	}
	return row
}
