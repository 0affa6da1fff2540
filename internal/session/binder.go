package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iammorganparry/datachat/internal/api"
	"github.com/iammorganparry/datachat/internal/model"
)

// Ingester uploads a spreadsheet to the analysis service
type Ingester interface {
	Upload(ctx context.Context, filename string, content io.Reader) (*api.UploadResponse, error)
}

// SuggestedQuestions are suggested after every successful upload
var SuggestedQuestions = []string{
	"Show me the first 10 rows",
	"What are the total values by category?",
	"Show the trend over time",
	"Which columns have missing values?",
}

// Binder turns a file into a bound dataset handle
type Binder struct {
	svc   Ingester
	state *sessionState
}

// Begin validates and claims the busy gate. It returns false without side
// effects when file is nil, a dataset is already bound, or the session is busy.
func (b *Binder) Begin(file File) (*Op, bool) {
	s := b.state
	if file == nil {
		s.logger.Debug("upload ignored", "reason", "no file")
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset != nil {
		s.logger.Debug("upload ignored", "reason", "dataset already bound")
		return nil, false
	}
	if !s.gate.tryAcquire() {
		s.logger.Debug("upload ignored", "reason", "busy")
		return nil, false
	}
	gen := s.generation

	return &Op{
		kind: OpUpload,
		run: func(ctx context.Context) (model.Entry, bool) {
			defer s.gate.release()
			return b.run(ctx, gen, file)
		},
	}, true
}

// Bind uploads file and appends the outcome entry
func (b *Binder) Bind(ctx context.Context, file File) (model.Entry, bool) {
	op, ok := b.Begin(file)
	if !ok {
		return model.Entry{}, false
	}
	return op.Run(ctx)
}

func (b *Binder) run(ctx context.Context, gen uint64, file File) (model.Entry, bool) {
	s := b.state

	result, opErr := b.upload(ctx, file)
	if opErr != nil {
		s.logger.Warn("upload failed", "file", file.Name(), "cause", opErr.Cause, "error", opErr.Err)
		entry := model.NewEntry(model.RoleError, uploadFailedPrefix+opErr.Cause, s.now())
		committed := s.commit(gen, func() { s.store.Append(entry) })
		return entry, committed
	}

	entry := model.NewEntry(model.RoleSystem, uploadSummary(*result), s.now())
	committed := s.commit(gen, func() {
		s.dataset = result
		s.store.Append(entry)
	})
	if committed {
		s.logger.Info("dataset bound", "table_id", result.TableID, "file", result.Filename, "rows", result.TotalRows())
	}
	return entry, committed
}

func (b *Binder) upload(ctx context.Context, file File) (*model.UploadResult, *OpError) {
	rc, err := file.Open()
	if err != nil {
		return nil, &OpError{Op: OpUpload, Cause: fmt.Sprintf("could not open %s", file.Name()), Err: err}
	}
	defer rc.Close()

	resp, err := b.svc.Upload(ctx, file.Name(), rc)
	if err != nil {
		return nil, &OpError{Op: OpUpload, Cause: serviceCause(err), Err: err}
	}
	if resp == nil || resp.TableID == "" {
		return nil, &OpError{Op: OpUpload, Cause: "the service response had no table id"}
	}

	result := toUploadResult(resp, file.Name(), b.state.now())
	return &result, nil
}

func toUploadResult(resp *api.UploadResponse, fallbackName string, now time.Time) model.UploadResult {
	res := model.UploadResult{
		TableID:    resp.TableID,
		Filename:   resp.Filename,
		Sheets:     make(map[string]model.SheetInfo, len(resp.Sheets)),
		UploadedAt: now,
	}
	if res.Filename == "" {
		res.Filename = fallbackName
	}
	if t, err := time.Parse("2006-01-02T15:04:05", resp.UploadTime); err == nil {
		res.UploadedAt = t
	} else if t, err := time.Parse(time.RFC3339Nano, resp.UploadTime); err == nil {
		res.UploadedAt = t
	}
	for name, meta := range resp.Sheets {
		res.Sheets[name] = model.SheetInfo{
			Rows:        meta.Rows(),
			Columns:     meta.Cols(),
			ColumnNames: append([]string(nil), meta.Columns...),
			DataTypes:   meta.DTypes,
		}
	}
	return res
}

func uploadSummary(res model.UploadResult) string {
	var b strings.Builder

	noun := "sheets"
	if len(res.Sheets) == 1 {
		noun = "sheet"
	}
	fmt.Fprintf(&b, "Uploaded %s: %d %s, %d rows total.", res.Filename, len(res.Sheets), noun, res.TotalRows())

	for _, name := range res.SheetNames() {
		sheet := res.Sheets[name]
		fmt.Fprintf(&b, "\n  • %s (%d rows × %d columns)", name, sheet.Rows, sheet.Columns)
	}

	b.WriteString("\n\nTry asking:")
	for _, q := range SuggestedQuestions {
		fmt.Fprintf(&b, "\n  • %s", q)
	}
	return b.String()
}
