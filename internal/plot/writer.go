package plot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/iammorganparry/datachat/internal/render"
)

// PlotlyCDN is the plotly.js bundle loaded by generated pages
const PlotlyCDN = "https://cdn.plot.ly/plotly-2.35.2.min.js"

// Request is one chart to hand to the plotting page
type Request struct {
	ID    string
	Title string
	Chart render.ChartView
}

// Writer writes standalone plot pages and optionally opens them
type Writer struct {
	dir    string
	open   bool
	opener func(ctx context.Context, path string) error
	logger *slog.Logger
}

// Option configures a Writer
type Option func(*Writer)

// WithOpen opens every written page in the browser
func WithOpen(open bool) Option {
	return func(w *Writer) { w.open = open }
}

// WithOpener replaces the browser launcher
func WithOpener(fn func(ctx context.Context, path string) error) Option {
	return func(w *Writer) { w.opener = fn }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a writer that puts pages under dir
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, opener: openBrowser, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the output directory
func (w *Writer) Dir() string { return w.dir }

// Path returns where the page for a chart id is written
func (w *Writer) Path(id string) string {
	return filepath.Join(w.dir, "chart-"+id+".html")
}

// Write renders the chart page for req and returns its path. Writing the same
// id twice overwrites the page.
func (w *Writer) Write(ctx context.Context, req Request) (string, error) {
	page, err := Page(req)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart directory: %w", err)
	}

	path := w.Path(req.ID)
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return "", fmt.Errorf("write chart page: %w", err)
	}
	w.logger.Debug("chart written", "id", req.ID, "kind", req.Chart.Kind, "path", path)

	if w.open {
		if err := w.opener(ctx, path); err != nil {
			w.logger.Warn("open chart failed", "path", path, "error", err)
		}
	}
	return path, nil
}

type figure struct {
	Data   json.RawMessage `json:"data"`
	Layout map[string]any  `json:"layout"`
}

type pageData struct {
	Title  string
	Script string
	Data   template.JS
	Layout template.JS
	Config template.JS
}

var pageTmpl = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.Script}}"></script>
<style>html, body { margin: 0; height: 100%; } #chart { width: 100%; height: 100vh; }</style>
</head>
<body>
<div id="chart"></div>
<script>Plotly.newPlot("chart", {{.Data}}, {{.Layout}}, {{.Config}});</script>
</body>
</html>
`))

// Page builds the HTML for a chart. The trace data is passed through
// untouched; the layout gets the fixed margin and autosize.
func Page(req Request) ([]byte, error) {
	var fig figure
	if err := json.Unmarshal(req.Chart.Payload, &fig); err != nil {
		return nil, fmt.Errorf("decode plot payload: %w", err)
	}
	if len(fig.Data) == 0 || string(fig.Data) == "null" {
		return nil, fmt.Errorf("plot payload has no data")
	}
	if fig.Layout == nil {
		fig.Layout = map[string]any{}
	}
	fig.Layout["margin"] = req.Chart.Options.Margin
	fig.Layout["autosize"] = true

	layout, err := json.Marshal(fig.Layout)
	if err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	config, err := json.Marshal(req.Chart.Options)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	var data bytes.Buffer
	json.HTMLEscape(&data, fig.Data)

	title := req.Title
	if title == "" {
		title = req.Chart.Kind + " chart"
	}

	var buf bytes.Buffer
	err = pageTmpl.Execute(&buf, pageData{
		Title:  title,
		Script: PlotlyCDN,
		Data:   template.JS(data.String()),
		Layout: template.JS(layout),
		Config: template.JS(config),
	})
	if err != nil {
		return nil, fmt.Errorf("render chart page: %w", err)
	}
	return buf.Bytes(), nil
}

func openBrowser(ctx context.Context, path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", path)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
