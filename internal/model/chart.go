package model

import "encoding/json"

// ChartKindTable is the chart kind the service uses for tabular echoes
const ChartKindTable = "table"

// ChartHint is the service's presentation hint for a query result.
// Renderable holds the opaque plotting payload for non-table kinds.
type ChartHint struct {
	Kind       string
	Renderable json.RawMessage
}

// IsTable reports whether the hint asks for a table presentation
func (c *ChartHint) IsTable() bool {
	return c != nil && c.Kind == ChartKindTable
}

// HasRenderable reports whether a plotting payload is present
func (c *ChartHint) HasRenderable() bool {
	if c == nil || len(c.Renderable) == 0 {
		return false
	}
	return string(c.Renderable) != "null"
}

// ResultKind is the normalized presentation mode of an entry
type ResultKind int

const (
	ResultNarrative ResultKind = iota // Text (and insights) only
	ResultTable                       // Bounded table excerpt
	ResultChart                       // Payload forwarded to the plotting page
)

func (k ResultKind) String() string {
	switch k {
	case ResultTable:
		return "table"
	case ResultChart:
		return "chart"
	default:
		return "narrative"
	}
}

// ResolveKind applies the table-then-chart selection rule
func ResolveKind(table *Table, chart *ChartHint) ResultKind {
	switch {
	case chart.IsTable() && table != nil:
		return ResultTable
	case chart != nil && !chart.IsTable() && chart.HasRenderable():
		return ResultChart
	default:
		return ResultNarrative
	}
}
