package service

import (
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func makeXLSX(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Failed to build cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestReadSheetCSV(t *testing.T) {
	data := []byte("\xef\xbb\xbfProperty Type,Reserve Price,State\nFlat,\"1,00,000\",Maharashtra\n,,\nShop,50000,Goa\n")

	rows, err := ReadSheet("upload.csv", data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 data rows, got %d", len(rows))
	}
	if rows[0]["propertytype"] != "Flat" || rows[0]["reserveprice"] != "1,00,000" {
		t.Errorf("Unexpected first row: %v", rows[0])
	}
	if rows[1] != nil {
		t.Errorf("Expected blank row to be nil, got %v", rows[1])
	}
	if rows[2]["state"] != "Goa" {
		t.Errorf("Unexpected third row: %v", rows[2])
	}
}

func TestReadSheetCSVEmptyLinesKeepRowNumbers(t *testing.T) {
	data := []byte("Type,State\r\nFlat,Goa\r\n\r\n\r\nShop,\r\n\"Plot\nwith notes\",Kerala\r\nHouse,Assam\r\n\r\n")

	rows, err := ReadSheet("upload.csv", data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Flat, blank, blank, Shop, multi-line Plot, House
	if len(rows) != 6 {
		t.Fatalf("Expected 6 data rows, got %d: %v", len(rows), rows)
	}
	if rows[1] != nil || rows[2] != nil {
		t.Errorf("Expected empty lines to stay as nil rows, got %v %v", rows[1], rows[2])
	}
	if rows[3]["type"] != "Shop" {
		t.Errorf("Expected Shop at sheet row 5, got %v", rows[3])
	}
	if rows[4]["type"] != "Plot\nwith notes" {
		t.Errorf("Expected multi-line cell kept in one row, got %v", rows[4])
	}
	if rows[5]["state"] != "Assam" {
		t.Errorf("Expected House right after the multi-line row, got %v", rows[5])
	}
}

func TestReadSheetXLSX(t *testing.T) {
	data := makeXLSX(t, [][]interface{}{
		{"Type", "Location", "Reserve Price"},
		{"Flat", "Pune", 250000},
		{"Plot", "Nashik", "75,000"},
	})

	// name without an extension exercises sniffing
	rows, err := ReadSheet("upload", data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0]["location"] != "Pune" || rows[0]["reserveprice"] != "250000" {
		t.Errorf("Unexpected first row: %v", rows[0])
	}
	if rows[1]["type"] != "Plot" {
		t.Errorf("Unexpected second row: %v", rows[1])
	}
}

func TestReadSheetUnreadable(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"empty", "a.csv", nil},
		{"blank header", "a.csv", []byte(",,\n1,2,3\n")},
		{"corrupt xlsx", "a.xlsx", []byte("PK\x03\x04 definitely not a workbook")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSheet(tt.file, tt.data)
			if !errors.Is(err, ErrUnreadableSheet) {
				t.Errorf("Expected ErrUnreadableSheet, got %v", err)
			}
		})
	}
}

func TestSheetFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"a.xlsx", nil, "xlsx"},
		{"A.CSV", []byte("PK\x03\x04"), "csv"},
		{"upload", []byte("PK\x03\x04rest"), "xlsx"},
		{"upload", []byte("a,b"), "csv"},
	}

	for _, tt := range tests {
		if got := sheetFormat(tt.name, tt.data); got != tt.expected {
			t.Errorf("sheetFormat(%q) = %s, expected %s", tt.name, got, tt.expected)
		}
	}
}
