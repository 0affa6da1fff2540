package model

import (
	"sort"
	"time"
)

// SheetInfo describes one ingested sheet
type SheetInfo struct {
	Rows        int
	Columns     int
	ColumnNames []string          // Cleaned column names, when the service reports them
	DataTypes   map[string]string // Column name -> detected type (INTEGER, REAL, TEXT, ...)
}

// UploadResult is the bound dataset produced by a successful upload
type UploadResult struct {
	TableID    string
	Filename   string
	Sheets     map[string]SheetInfo
	UploadedAt time.Time
}

// TotalRows sums the row counts of every sheet
func (u UploadResult) TotalRows() int {
	total := 0
	for _, s := range u.Sheets {
		total += s.Rows
	}
	return total
}

// SheetNames returns the sheet names in a stable order
func (u UploadResult) SheetNames() []string {
	names := make([]string, 0, len(u.Sheets))
	for name := range u.Sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
