package render

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/iammorganparry/datachat/internal/model"
)

const (
	// MaxTableRows is the number of rows shown in a table excerpt
	MaxTableRows = 10
	// Placeholder is shown for null or absent cells
	Placeholder = "—"
	// EmptyTableMessage is shown for a table result with no rows
	EmptyTableMessage = "No rows returned."
	// NoColumnsMessage is shown when rows came back but the first one has no columns
	NoColumnsMessage = "Rows returned, but the first row has no columns to show."
	// TimeLayout formats entry timestamps
	TimeLayout = "15:04:05"
)

// View is the render tree for one entry. At most one of Table and Chart is set.
type View struct {
	EntryID  string
	Role     model.Role
	Label    string
	Icon     string
	Time     string
	Body     string
	Insights string
	Notice   string

	Table *TableView
	Chart *ChartView
}

// TableView is a bounded, stringified excerpt of a tabular result
type TableView struct {
	Header []string
	Rows   [][]string
	Footer string
	Empty  string
}

// ChartView forwards a plotting payload untouched
type ChartView struct {
	Kind    string
	Payload json.RawMessage
	Options ChartOptions
}

// ChartOptions are the fixed display options sent to the plotting page
type ChartOptions struct {
	Responsive     bool   `json:"responsive"`
	DisplayModeBar bool   `json:"displayModeBar"`
	Margin         Margin `json:"-"`
}

// Margin is a plot margin in pixels
type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

// DefaultChartOptions are applied to every chart
var DefaultChartOptions = ChartOptions{
	Responsive:     true,
	DisplayModeBar: false,
	Margin:         Margin{L: 40, R: 20, T: 40, B: 40},
}

// Present maps an entry to its render tree. It is pure: the same entry always
// yields an equal View.
func Present(entry model.Entry) View {
	v := View{
		EntryID:  entry.ID,
		Role:     entry.Role,
		Label:    entry.Role.Label(),
		Icon:     entry.Role.Icon(),
		Body:     entry.Text,
		Insights: entry.Insight,
	}
	if !entry.CreatedAt.IsZero() {
		v.Time = entry.CreatedAt.Format(TimeLayout)
	}
	if entry.Success != nil && !*entry.Success {
		v.Notice = entry.Notice
	}

	switch entry.Kind {
	case model.ResultTable:
		v.Table = presentTable(entry.Table)
	case model.ResultChart:
		v.Chart = &ChartView{
			Kind:    entry.Chart.Kind,
			Payload: entry.Chart.Renderable,
			Options: DefaultChartOptions,
		}
	}
	return v
}

// PresentAll maps a history to render trees in order
func PresentAll(entries []model.Entry) []View {
	views := make([]View, 0, len(entries))
	for _, e := range entries {
		views = append(views, Present(e))
	}
	return views
}

// presentTable takes the header from the first row only. Columns that appear
// only in later rows are not shown.
func presentTable(t *model.Table) *TableView {
	n := t.Len()
	if n == 0 {
		return &TableView{Empty: EmptyTableMessage}
	}

	header := append([]string(nil), t.Rows[0].Columns...)
	if len(header) == 0 {
		return &TableView{Empty: NoColumnsMessage}
	}
	shown := min(n, MaxTableRows)
	rows := make([][]string, 0, shown)
	for _, r := range t.Rows[:shown] {
		cells := make([]string, len(header))
		for i, col := range header {
			v, ok := r.Get(col)
			if !ok {
				cells[i] = Placeholder
				continue
			}
			cells[i] = Cell(v)
		}
		rows = append(rows, cells)
	}

	tv := &TableView{Header: header, Rows: rows}
	if n > MaxTableRows {
		tv.Footer = fmt.Sprintf("Showing first %d of %d rows", MaxTableRows, n)
	}
	return tv
}

// Cell stringifies a decoded JSON value for display
func Cell(v any) string {
	switch val := v.(type) {
	case nil:
		return Placeholder
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case map[string]any, []any, model.Row:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
