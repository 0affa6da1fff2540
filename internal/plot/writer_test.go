package plot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iammorganparry/datachat/internal/render"
)

func chartRequest(payload string) Request {
	return Request{
		ID: "entry-1",
		Chart: render.ChartView{
			Kind:    "line",
			Payload: json.RawMessage(payload),
			Options: render.DefaultChartOptions,
		},
	}
}

func TestPageMergesLayoutAndConfig(t *testing.T) {
	req := chartRequest(`{"data":[{"type":"scatter","mode":"lines","x":["Jan","Feb"],"y":[10,12]}],"layout":{"title":{"text":"Revenue"},"margin":{"l":0}}}`)

	page, err := Page(req)
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}
	html := string(page)

	for _, want := range []string{
		`<script src="` + PlotlyCDN + `">`,
		`Plotly.newPlot("chart", [{"type":"scatter","mode":"lines","x":["Jan","Feb"],"y":[10,12]}]`,
		`"margin":{"l":40,"r":20,"t":40,"b":40}`,
		`"autosize":true`,
		`"title":{"text":"Revenue"}`,
		`{"responsive":true,"displayModeBar":false}`,
		`<title>line chart</title>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %s\n%s", want, html)
		}
	}
}

func TestPageEscapesScriptBreakout(t *testing.T) {
	req := chartRequest(`{"data":[{"type":"bar","name":"</script><b>x</b>","y":[1]}]}`)

	page, err := Page(req)
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}
	if strings.Contains(string(page), "</script><b>") {
		t.Errorf("trace data was not escaped:\n%s", page)
	}
}

func TestPageRejectsBadPayload(t *testing.T) {
	tests := map[string]string{
		"not json":  `plot`,
		"no data":   `{"layout":{}}`,
		"null data": `{"data":null}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Page(chartRequest(payload)); err == nil {
				t.Errorf("Page(%s) returned no error", payload)
			}
		})
	}
}

func TestWriterWritesAndOpens(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	var opened []string
	w := NewWriter(dir, WithOpen(true), WithOpener(func(ctx context.Context, path string) error {
		opened = append(opened, path)
		return nil
	}))

	req := chartRequest(`{"data":[{"type":"bar","x":["a"],"y":[1]}]}`)
	path, err := w.Write(context.Background(), req)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if path != w.Path("entry-1") {
		t.Errorf("path = %q, want %q", path, w.Path("entry-1"))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("page not written: %v", err)
	}
	if len(opened) != 1 || opened[0] != path {
		t.Errorf("opened = %v, want [%s]", opened, path)
	}

	// Same id overwrites rather than creating a second page
	if _, err := w.Write(context.Background(), req); err != nil {
		t.Fatalf("second Write() error: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected one page, found %d", len(entries))
	}
}

func TestWriterDoesNotOpenByDefault(t *testing.T) {
	called := false
	w := NewWriter(t.TempDir(), WithOpener(func(ctx context.Context, path string) error {
		called = true
		return nil
	}))
	if _, err := w.Write(context.Background(), chartRequest(`{"data":[]}`)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if called {
		t.Error("Expected opener not to run without WithOpen")
	}
}
