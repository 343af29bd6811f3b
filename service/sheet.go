package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/AnTengye/auctionhub/backend/model"
)

var ErrUnreadableSheet = errors.New("unreadable spreadsheet")

var zipMagic = []byte("PK\x03\x04")

// ReadSheet parses an xlsx or csv upload into records. The slice index is the
// data row index (row number = index + 2); blank rows are kept as nil so the
// numbering survives.
func ReadSheet(name string, data []byte) ([]model.RawRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnreadableSheet)
	}

	var (
		rows [][]string
		err  error
	)
	switch sheetFormat(name, data) {
	case "xlsx":
		rows, err = readXLSX(data)
	default:
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrUnreadableSheet)
	}

	header := make([]string, len(rows[0]))
	hasHeader := false
	for i, h := range rows[0] {
		header[i] = NormalizeHeader(h)
		if header[i] != "" {
			hasHeader = true
		}
	}
	if !hasHeader {
		return nil, fmt.Errorf("%w: empty header row", ErrUnreadableSheet)
	}

	records := make([]model.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, buildRecord(header, row))
	}
	return records, nil
}

func sheetFormat(name string, data []byte) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".csv", ".txt":
		return "csv"
	}
	if bytes.HasPrefix(data, zipMagic) {
		return "xlsx"
	}
	return "csv"
}

func buildRecord(header, row []string) model.RawRecord {
	rec := make(model.RawRecord)
	blank := true
	for i, cell := range row {
		if i >= len(header) || header[i] == "" {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell != "" {
			blank = false
		}
		// first non-empty column wins when two headers normalize alike
		if _, exists := rec[header[i]]; !exists || rec[header[i]] == "" {
			rec[header[i]] = cell
		}
	}
	if blank {
		return nil
	}
	return rec
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	// encoding/csv drops empty lines; pad them back from line positions so
	// that slice index still maps onto the sheet row.
	var (
		rows    [][]string
		lastEnd int
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		start, _ := r.FieldPos(0)
		if len(rows) > 0 {
			for gap := start - lastEnd - 1; gap > 0; gap-- {
				rows = append(rows, nil)
			}
		}
		last := len(rec) - 1
		endLine, _ := r.FieldPos(last)
		lastEnd = endLine + strings.Count(rec[last], "\n")
		rows = append(rows, rec)
	}
	return rows, nil
}
