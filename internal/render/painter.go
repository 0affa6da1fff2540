package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/iammorganparry/datachat/internal/model"
)

// Painter turns render trees into styled terminal text
type Painter struct {
	width      int
	markdown   bool
	style      string
	md         *glamour.TermRenderer
	chartLabel func(entryID string) string
}

// PainterOption configures a Painter
type PainterOption func(*Painter)

// WithWidth sets the wrap width
func WithWidth(w int) PainterOption {
	return func(p *Painter) { p.width = w }
}

// WithMarkdown toggles markdown rendering of agent text
func WithMarkdown(on bool) PainterOption {
	return func(p *Painter) { p.markdown = on }
}

// WithGlamourStyle selects a glamour style ("auto", "dark", "light", "notty")
func WithGlamourStyle(style string) PainterOption {
	return func(p *Painter) { p.style = style }
}

// WithChartLabel sets the line shown under chart entries, typically the
// location of the written plot page
func WithChartLabel(fn func(entryID string) string) PainterOption {
	return func(p *Painter) { p.chartLabel = fn }
}

// NewPainter creates a painter
func NewPainter(opts ...PainterOption) *Painter {
	p := &Painter{width: 80, markdown: true, style: "auto"}
	for _, opt := range opts {
		opt(p)
	}
	p.md = p.newRenderer()
	return p
}

// SetWidth rebuilds the markdown renderer for a new terminal width
func (p *Painter) SetWidth(w int) {
	if w <= 0 || w == p.width {
		return
	}
	p.width = w
	p.md = p.newRenderer()
}

func (p *Painter) newRenderer() *glamour.TermRenderer {
	if !p.markdown {
		return nil
	}
	wrap := max(p.width-6, 20)
	var (
		r   *glamour.TermRenderer
		err error
	)
	if p.style == "auto" {
		r, err = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrap))
	} else {
		r, err = glamour.NewTermRenderer(glamour.WithStylePath(p.style), glamour.WithWordWrap(wrap))
	}
	if err != nil {
		return nil
	}
	return r
}

// PaintAll paints views separated by blank lines
func (p *Painter) PaintAll(views []View) string {
	parts := make([]string, 0, len(views))
	for _, v := range views {
		parts = append(parts, p.Paint(v))
	}
	return strings.Join(parts, "\n\n")
}

// Paint renders a single view
func (p *Painter) Paint(v View) string {
	st := styleFor(v.Role)

	header := st.label.Render(v.Icon + " " + v.Label)
	if v.Time != "" {
		header += " " + TimeStyle.Render(v.Time)
	}

	var sections []string
	sections = append(sections, header)
	if body := p.body(v, st); body != "" {
		sections = append(sections, body)
	}
	if v.Notice != "" {
		sections = append(sections, NoticeStyle.Render(v.Notice))
	}
	if v.Table != nil {
		sections = append(sections, p.table(v.Table))
	}
	if v.Chart != nil {
		sections = append(sections, p.chart(v))
	}
	if v.Insights != "" {
		insight := InsightTitleStyle.Render("Insights") + "\n" + p.text(v.Insights)
		sections = append(sections, InsightStyle.Render(insight))
	}

	return st.block.Render(strings.Join(sections, "\n"))
}

func (p *Painter) body(v View, st roleStyle) string {
	if strings.TrimSpace(v.Body) == "" {
		return ""
	}
	if v.Role == model.RoleAgent {
		return p.text(v.Body)
	}
	return st.text.Width(p.contentWidth()).Render(v.Body)
}

// text renders markdown when enabled, plain wrapped text otherwise
func (p *Painter) text(s string) string {
	if p.md != nil {
		if out, err := p.md.Render(s); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return lipgloss.NewStyle().Width(p.contentWidth()).Render(s)
}

func (p *Painter) table(tv *TableView) string {
	if tv.Empty != "" {
		return DimStyle.Render(tv.Empty)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Headers(tv.Header...).
		Rows(tv.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})

	out := t.String()
	if tv.Footer != "" {
		out += "\n" + TableFooterStyle.Render(tv.Footer)
	}
	return out
}

func (p *Painter) chart(v View) string {
	line := ChartStyle.Render("▤ " + v.Chart.Kind + " chart")
	if p.chartLabel != nil {
		if label := p.chartLabel(v.EntryID); label != "" {
			line += " " + DimStyle.Render(label)
		}
	}
	return line
}

func (p *Painter) contentWidth() int {
	return max(p.width-4, 20)
}
