package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iammorganparry/datachat/internal/model"
)

// Plan is what a planner decides for one question
type Plan struct {
	SQL           string
	Visualization string
	Explanation   string
	Insights      string
}

// Planner turns a question about stored sheets into a query plan
type Planner interface {
	Plan(ctx context.Context, question string, sheets []SheetRecord) (Plan, error)
}

// KeywordPlanner picks a chart type from keywords in the question and
// selects the first 100 rows of the first sheet
type KeywordPlanner struct{}

// Plan implements Planner
func (KeywordPlanner) Plan(ctx context.Context, question string, sheets []SheetRecord) (Plan, error) {
	if len(sheets) == 0 {
		return Plan{}, ErrNotFound
	}
	q := strings.ToLower(question)
	sql := fmt.Sprintf("SELECT * FROM %s LIMIT 100", quoteIdent(sheets[0].TableName))

	switch {
	case containsAny(q, "trend", "time", "over time"):
		return Plan{
			SQL:           sql,
			Visualization: "line",
			Explanation:   "Showing data trends over time",
			Insights:      "Look for patterns and changes in the data",
		}, nil
	case containsAny(q, "sum", "total", "count"):
		return Plan{
			SQL:           sql,
			Visualization: "bar",
			Explanation:   "Showing aggregated data",
			Insights:      "Compare totals across categories",
		}, nil
	default:
		return Plan{
			SQL:           sql,
			Visualization: "table",
			Explanation:   "Showing raw data overview",
			Insights:      "Examine the data structure and values",
		}, nil
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// chartPayload is the wire shape of a query's chart. Data is sent for table
// echoes only, including an empty list.
type chartPayload struct {
	Type       string
	PlotlyJSON json.RawMessage
	Data       []model.Row
}

func (c chartPayload) MarshalJSON() ([]byte, error) {
	m := map[string]any{"type": c.Type}
	if c.PlotlyJSON != nil {
		m["plotly_json"] = c.PlotlyJSON
	}
	if c.Data != nil {
		m["data"] = c.Data
	}
	return json.Marshal(m)
}

type trace struct {
	Type string `json:"type"`
	Mode string `json:"mode,omitempty"`
	X    []any  `json:"x,omitempty"`
	Y    []any  `json:"y"`
}

type axis struct {
	Title map[string]string `json:"title"`
}

type figure struct {
	Data   []trace        `json:"data"`
	Layout map[string]any `json:"layout"`
}

// visualize builds the chart for a result. Bar and line charts use the first
// column as x and the second as y; everything else is echoed as a table.
func visualize(rows []model.Row, kind string) chartPayload {
	if len(rows) == 0 {
		return chartPayload{Type: model.ChartKindTable, Data: []model.Row{}}
	}

	cols := rows[0].Columns
	var limit int
	var tr trace
	switch kind {
	case "bar":
		limit, tr = 20, trace{Type: "bar"}
	case "line":
		limit, tr = 50, trace{Type: "scatter", Mode: "lines"}
	case "scatter":
		if len(cols) < 2 {
			return chartPayload{Type: model.ChartKindTable, Data: head(rows, 50)}
		}
		limit, tr = 100, trace{Type: "scatter", Mode: "markers"}
	default:
		return chartPayload{Type: model.ChartKindTable, Data: head(rows, 100)}
	}

	layout := map[string]any{}
	for i, r := range head(rows, limit) {
		if len(cols) >= 2 {
			x, _ := r.Get(cols[0])
			y, _ := r.Get(cols[1])
			tr.X = append(tr.X, x)
			tr.Y = append(tr.Y, y)
			continue
		}
		y, _ := r.Get(cols[0])
		tr.X = append(tr.X, i)
		tr.Y = append(tr.Y, y)
	}
	if len(cols) >= 2 {
		layout["xaxis"] = axis{Title: map[string]string{"text": cols[0]}}
		layout["yaxis"] = axis{Title: map[string]string{"text": cols[1]}}
	} else {
		layout["yaxis"] = axis{Title: map[string]string{"text": cols[0]}}
	}

	payload, err := json.Marshal(figure{Data: []trace{tr}, Layout: layout})
	if err != nil {
		return chartPayload{Type: model.ChartKindTable, Data: head(rows, 50)}
	}
	return chartPayload{Type: kind, PlotlyJSON: payload}
}

func head(rows []model.Row, n int) []model.Row {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}
