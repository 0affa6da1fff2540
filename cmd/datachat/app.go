package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/iammorganparry/datachat/internal/api"
	"github.com/iammorganparry/datachat/internal/config"
	"github.com/iammorganparry/datachat/internal/logging"
	"github.com/iammorganparry/datachat/internal/model"
	"github.com/iammorganparry/datachat/internal/plot"
	"github.com/iammorganparry/datachat/internal/render"
	"github.com/iammorganparry/datachat/internal/session"
	"github.com/iammorganparry/datachat/internal/transcript"
)

var errUploadFailed = errors.New("upload failed")

// load resolves the config file, applies flag overrides and validates the result
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.apiBase != "" {
		cfg.APIBase = o.apiBase
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app wires one session against the configured service
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	ctrl       *session.Controller
	charts     *plot.Writer
	transcript *transcript.Logger
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	client := api.NewClient(cfg.APIBase,
		api.WithTimeout(cfg.Timeout),
		api.WithUploadTimeout(cfg.UploadTimeout),
		api.WithLogger(logger),
	)

	opts := []session.Option{session.WithLogger(logger)}
	if cfg.Transcript {
		tl, err := transcript.New(cfg.TranscriptDir, map[string]any{
			"api_base": cfg.APIBase,
			"version":  Version,
		})
		if err != nil {
			return nil, err
		}
		a.transcript = tl
		opts = append(opts, session.WithObservers(tl))
		logger.Info("transcript enabled", "path", tl.Path())
	}

	a.ctrl = session.NewController(client, opts...)
	a.charts = plot.NewWriter(cfg.ChartDir, plot.WithOpen(cfg.OpenCharts), plot.WithLogger(logger))
	logger.Debug("session ready", "api_base", client.BaseURL(), "config", cfg.Source)
	return a, nil
}

func (a *app) Close() error {
	return a.transcript.Close()
}

// printer paints entries for non-interactive output and writes chart pages
type printer struct {
	a       *app
	out     io.Writer
	painter *render.Painter
	paths   map[string]string
}

func (a *app) newPrinter(out io.Writer) *printer {
	p := &printer{a: a, out: out, paths: make(map[string]string)}
	p.painter = render.NewPainter(
		render.WithMarkdown(a.cfg.Markdown),
		render.WithChartLabel(func(id string) string { return p.paths[id] }),
	)
	return p
}

func (p *printer) print(ctx context.Context, entry model.Entry) {
	view := render.Present(entry)
	if view.Chart != nil {
		path, err := p.a.charts.Write(ctx, plot.Request{ID: entry.ID, Title: entry.Text, Chart: *view.Chart})
		if err != nil {
			p.a.logger.Warn("chart page failed", "entry_id", entry.ID, "error", err)
		} else {
			p.paths[entry.ID] = path
		}
	}
	fmt.Fprintln(p.out, p.painter.Paint(view))
	fmt.Fprintln(p.out)
}

// bind uploads path and prints the outcome. It fails when no dataset got bound.
func (a *app) bind(ctx context.Context, p *printer, path string) error {
	file := session.FileFromPath(path)
	if file == nil {
		return errors.New("no file given")
	}
	entry, ok := a.ctrl.Upload(ctx, file)
	if !ok {
		return errUploadFailed
	}
	p.print(ctx, entry)
	if a.ctrl.Phase() != session.PhaseDatasetBound {
		return errUploadFailed
	}
	return nil
}

// stderrLogger is the logger for commands that do not own the terminal
func stderrLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return logging.New(w, cfg.LogLevel)
}
