package devserver

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Column types stored in sheet metadata
const (
	TypeInteger  = "INTEGER"
	TypeReal     = "REAL"
	TypeDatetime = "DATETIME"
	TypeText     = "TEXT"
)

// Sheet is one parsed, cleaned worksheet
type Sheet struct {
	Name    string
	Columns []string
	DTypes  map[string]string
	// Rows hold nil for empty cells
	Rows [][]any
}

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

var nullMarkers = map[string]bool{"": true, "nan": true, "None": true, "null": true}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"1-2-06",
	time.RFC3339,
}

// ParseWorkbook reads every sheet of an Excel workbook. The first row is the
// header; fully empty rows are dropped and null markers become nil.
func ParseWorkbook(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, fmt.Errorf("no sheets")
	}

	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		sheets = append(sheets, buildSheet(name, rows))
	}
	return sheets, nil
}

func buildSheet(name string, raw [][]string) Sheet {
	s := Sheet{Name: name, DTypes: map[string]string{}}
	if len(raw) == 0 {
		return s
	}

	// GetRows trims trailing empty cells, so a blank trailing header cell
	// only shows up as extra width in the data rows.
	width := 0
	for _, r := range raw {
		width = max(width, len(r))
	}
	header := make([]string, width)
	copy(header, raw[0])

	s.Columns = cleanColumns(header)
	for _, r := range raw[1:] {
		row := make([]any, len(s.Columns))
		empty := true
		for i := range s.Columns {
			if i >= len(r) {
				continue
			}
			v := strings.TrimSpace(r[i])
			if nullMarkers[v] {
				continue
			}
			row[i] = v
			empty = false
		}
		if !empty {
			s.Rows = append(s.Rows, row)
		}
	}

	for i, col := range s.Columns {
		s.DTypes[col] = detectType(s.Rows, i)
	}
	for _, row := range s.Rows {
		for i, col := range s.Columns {
			row[i] = convert(row[i], s.DTypes[col])
		}
	}
	return s
}

// cleanColumns strips punctuation, joins words with underscores and makes
// names unique. Blank headers become Column_<n>.
func cleanColumns(header []string) []string {
	seen := map[string]int{}
	cols := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(nonWord.ReplaceAllString(h, ""))
		name = whitespace.ReplaceAllString(name, "_")
		if len(name) > 50 {
			name = name[:50]
		}
		if name == "" || strings.HasPrefix(name, "Unnamed") {
			name = fmt.Sprintf("Column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		cols[i] = name
	}
	return cols
}

func detectType(rows [][]any, col int) string {
	var values []string
	for _, r := range rows {
		if s, ok := r[col].(string); ok {
			values = append(values, s)
		}
	}
	if len(values) == 0 {
		return TypeText
	}

	numeric, integer := true, true
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			numeric = false
			break
		}
		if f != float64(int64(f)) {
			integer = false
		}
	}
	if numeric {
		if integer {
			return TypeInteger
		}
		return TypeReal
	}

	for _, v := range values {
		if !isDate(v) {
			return TypeText
		}
	}
	return TypeDatetime
}

func isDate(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func convert(v any, dtype string) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch dtype {
	case TypeInteger:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
	case TypeReal:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
