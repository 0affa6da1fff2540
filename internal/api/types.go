package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iammorganparry/datachat/internal/model"
)

// UploadResponse is the ingestion service's answer to POST /upload
type UploadResponse struct {
	TableID    string               `json:"table_id"`
	Filename   string               `json:"filename"`
	Sheets     map[string]SheetMeta `json:"sheets"`
	UploadTime string               `json:"upload_time,omitempty"`
}

// SheetMeta is the per-sheet metadata in an upload response
type SheetMeta struct {
	Shape   []int             `json:"shape"` // [rows, columns]
	Columns []string          `json:"columns,omitempty"`
	DTypes  map[string]string `json:"dtypes,omitempty"`
}

// Rows returns the row count from the shape tuple
func (s SheetMeta) Rows() int {
	if len(s.Shape) > 0 {
		return s.Shape[0]
	}
	return 0
}

// Cols returns the column count from the shape tuple
func (s SheetMeta) Cols() int {
	if len(s.Shape) > 1 {
		return s.Shape[1]
	}
	return len(s.Columns)
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	TableID  string `json:"table_id"`
	Question string `json:"question"`
}

// QueryResponse is the analysis service's answer to POST /query.
// A nil Data means the field was absent; an empty slice means no rows.
type QueryResponse struct {
	Success             bool          `json:"success"`
	Explanation         string        `json:"explanation"`
	Data                []model.Row   `json:"data,omitempty"`
	Chart               *ChartPayload `json:"chart,omitempty"`
	Insights            Text          `json:"insights,omitempty"`
	RowCount            *int          `json:"row_count,omitempty"`
	Error               string        `json:"error,omitempty"`
	FallbackExplanation string        `json:"fallback_explanation,omitempty"`
}

// ChartPayload is the chart hint inside a query response
type ChartPayload struct {
	Type       string          `json:"type"`
	PlotlyJSON json.RawMessage `json:"plotly_json,omitempty"`
	Data       []model.Row     `json:"data,omitempty"`
}

// Text is free text that the service sometimes sends as a list of strings
type Text string

// UnmarshalJSON accepts a string, a list of strings, or null
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '[' {
		var parts []any
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("decode text list: %w", err)
		}
		lines := make([]string, 0, len(parts))
		for _, p := range parts {
			lines = append(lines, fmt.Sprint(p))
		}
		*t = Text(strings.Join(lines, "\n"))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode text: %w", err)
	}
	*t = Text(s)
	return nil
}
