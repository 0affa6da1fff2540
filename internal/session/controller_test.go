package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/iammorganparry/datachat/internal/api"
	"github.com/iammorganparry/datachat/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeService is a scripted analysis service. When gate is non-nil every
// call signals started and waits for gate to be closed.
type fakeService struct {
	mu         sync.Mutex
	uploadResp *api.UploadResponse
	uploadErr  error
	queryResp  *api.QueryResponse
	queryErr   error
	uploads    []string
	questions  []string

	started chan struct{}
	gate    chan struct{}
}

func (f *fakeService) wait() {
	if f.gate == nil {
		return
	}
	f.started <- struct{}{}
	<-f.gate
}

func (f *fakeService) Upload(ctx context.Context, filename string, content io.Reader) (*api.UploadResponse, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	return f.uploadResp, f.uploadErr
}

func (f *fakeService) Query(ctx context.Context, tableID, question string) (*api.QueryResponse, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	return f.queryResp, f.queryErr
}

func salesUpload() *api.UploadResponse {
	return &api.UploadResponse{
		TableID:  "table_1a2b3c4d",
		Filename: "sales.xlsx",
		Sheets:   map[string]api.SheetMeta{"Sheet1": {Shape: []int{120, 5}}},
	}
}

func salesFile() File {
	return MemFile{Filename: "sales.xlsx", Data: []byte("xlsx-bytes")}
}

// boundController returns a controller with sales.xlsx already bound
func boundController(t *testing.T, svc *fakeService) *Controller {
	t.Helper()
	svc.uploadResp = salesUpload()
	c := NewController(svc)
	if _, ok := c.Upload(context.Background(), salesFile()); !ok {
		t.Fatal("Expected upload to be accepted")
	}
	if c.Phase() != PhaseDatasetBound {
		t.Fatalf("Expected dataset-bound phase, got %v", c.Phase())
	}
	return c
}

func TestUploadSuccessBindsDataset(t *testing.T) {
	svc := &fakeService{uploadResp: salesUpload()}
	c := NewController(svc)

	entry, ok := c.Upload(context.Background(), salesFile())
	if !ok {
		t.Fatal("Expected upload to be committed")
	}

	history := c.History()
	if len(history) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(history))
	}
	if history[0].Role != model.RoleSystem {
		t.Errorf("Expected system entry, got %s", history[0].Role)
	}
	if !strings.Contains(entry.Text, "120") || !strings.Contains(entry.Text, "sales.xlsx") {
		t.Errorf("Expected summary with filename and 120 rows, got %q", entry.Text)
	}
	for _, q := range SuggestedQuestions {
		if !strings.Contains(entry.Text, q) {
			t.Errorf("Expected suggested question %q in summary", q)
		}
	}

	ds, bound := c.Dataset()
	if !bound {
		t.Fatal("Expected dataset to be bound")
	}
	if ds.TableID != "table_1a2b3c4d" {
		t.Errorf("TableID = %q, want table_1a2b3c4d", ds.TableID)
	}
	if c.Busy() {
		t.Error("Expected busy to be cleared after upload")
	}
}

func TestUploadSummarySumsAllSheets(t *testing.T) {
	svc := &fakeService{uploadResp: &api.UploadResponse{
		TableID:  "t",
		Filename: "multi.xlsx",
		Sheets: map[string]api.SheetMeta{
			"Orders":  {Shape: []int{40, 3}},
			"Returns": {Shape: []int{2, 3}},
		},
	}}
	c := NewController(svc)

	entry, _ := c.Upload(context.Background(), MemFile{Filename: "multi.xlsx"})
	if !strings.Contains(entry.Text, "2 sheets, 42 rows total") {
		t.Errorf("Expected sheet count and summed rows, got %q", entry.Text)
	}
}

func TestUploadFailureAppendsError(t *testing.T) {
	svc := &fakeService{uploadErr: &api.Error{Status: 400, Detail: "Unsupported file type"}}
	c := NewController(svc)

	entry, ok := c.Upload(context.Background(), MemFile{Filename: "notes.txt"})
	if !ok {
		t.Fatal("Expected failed upload to still commit an entry")
	}
	if entry.Role != model.RoleError {
		t.Errorf("Expected error entry, got %s", entry.Role)
	}
	if !strings.Contains(entry.Text, "Unsupported file type") {
		t.Errorf("Expected cause in error text, got %q", entry.Text)
	}
	if c.History()[0].ID != entry.ID || len(c.History()) != 1 {
		t.Errorf("Expected exactly the error entry in history, got %d entries", len(c.History()))
	}
	if _, bound := c.Dataset(); bound {
		t.Error("Expected dataset to remain unset")
	}
	if c.Busy() {
		t.Error("Expected busy to be cleared after failed upload")
	}
}

func TestUploadTransportFailureUsesGenericCause(t *testing.T) {
	svc := &fakeService{uploadErr: errors.New("dial tcp 127.0.0.1:8000: connection refused")}
	c := NewController(svc)

	entry, _ := c.Upload(context.Background(), salesFile())
	if !strings.Contains(entry.Text, transportCause) {
		t.Errorf("Expected generic transport cause, got %q", entry.Text)
	}
	if strings.Contains(entry.Text, "dial tcp") {
		t.Errorf("Internal error detail leaked into entry: %q", entry.Text)
	}
}

func TestUnreadableResponseHasItsOwnCause(t *testing.T) {
	malformed := fmt.Errorf("%w: unmarshal response: unexpected end of JSON input", api.ErrMalformedResponse)

	t.Run("upload", func(t *testing.T) {
		c := NewController(&fakeService{uploadErr: malformed})
		entry, _ := c.Upload(context.Background(), salesFile())
		if entry.Text != uploadFailedPrefix+malformedCause {
			t.Errorf("entry = %q", entry.Text)
		}
	})

	t.Run("query", func(t *testing.T) {
		svc := &fakeService{}
		c := boundController(t, svc)
		svc.queryErr = malformed
		entry, _ := c.Ask(context.Background(), "total by region")
		if entry.Text != queryFailedPrefix+malformedCause {
			t.Errorf("entry = %q", entry.Text)
		}
		if strings.Contains(entry.Text, "could not reach") {
			t.Errorf("reachable service reported as unreachable: %q", entry.Text)
		}
	})
}

func TestUploadMissingTableIDIsError(t *testing.T) {
	svc := &fakeService{uploadResp: &api.UploadResponse{Filename: "x.xlsx"}}
	c := NewController(svc)

	entry, _ := c.Upload(context.Background(), salesFile())
	if entry.Role != model.RoleError {
		t.Errorf("Expected error entry for response without table id, got %s", entry.Role)
	}
	if c.Phase() != PhaseNoDataset {
		t.Error("Expected to stay in no-dataset phase")
	}
}

func TestUploadNoOps(t *testing.T) {
	t.Run("nil file", func(t *testing.T) {
		svc := &fakeService{uploadResp: salesUpload()}
		c := NewController(svc)
		if _, ok := c.Upload(context.Background(), nil); ok {
			t.Error("Expected nil file to be a no-op")
		}
		if len(c.History()) != 0 || len(svc.uploads) != 0 {
			t.Error("Expected no entries and no service call")
		}
	})

	t.Run("already bound", func(t *testing.T) {
		svc := &fakeService{}
		c := boundController(t, svc)
		before := len(c.History())
		if _, ok := c.Upload(context.Background(), salesFile()); ok {
			t.Error("Expected rebinding to be rejected")
		}
		if len(c.History()) != before || len(svc.uploads) != 1 {
			t.Error("Expected rejected rebind to leave state untouched")
		}
	})
}

func TestDispatchAppendsUserThenAgent(t *testing.T) {
	svc := &fakeService{queryResp: &api.QueryResponse{Success: true, Explanation: "Here you go"}}
	c := boundController(t, svc)
	start := len(c.History())

	questions := []string{"  total by region  ", "top customers", "top customers"}
	for i, q := range questions {
		if _, ok := c.Ask(context.Background(), q); !ok {
			t.Fatalf("Ask(%q) was not accepted", q)
		}
		history := c.History()
		if got, want := len(history), start+2*(i+1); got != want {
			t.Fatalf("After %d dispatches history has %d entries, want %d", i+1, got, want)
		}
		user, agent := history[len(history)-2], history[len(history)-1]
		if user.Role != model.RoleUser || agent.Role != model.RoleAgent {
			t.Errorf("Expected user then agent, got %s then %s", user.Role, agent.Role)
		}
		if user.Text != strings.TrimSpace(q) {
			t.Errorf("User echo = %q, want %q", user.Text, strings.TrimSpace(q))
		}
		if agent.Text != "Here you go" {
			t.Errorf("Agent text = %q", agent.Text)
		}
	}

	if len(svc.questions) != 3 {
		t.Errorf("Expected identical questions to be dispatched independently, got %d calls", len(svc.questions))
	}
}

func TestDispatchFailureAppendsExactlyTwo(t *testing.T) {
	svc := &fakeService{queryErr: &api.Error{Status: 500, Detail: "SQL execution error: no such column"}}
	c := boundController(t, svc)
	start := len(c.History())

	entry, ok := c.Ask(context.Background(), "broken question")
	if !ok {
		t.Fatal("Expected failed query to commit")
	}
	history := c.History()
	if len(history) != start+2 {
		t.Fatalf("Expected history to grow by 2, grew by %d", len(history)-start)
	}
	if history[start].Role != model.RoleUser || entry.Role != model.RoleError {
		t.Errorf("Expected user then error, got %s then %s", history[start].Role, entry.Role)
	}
	if !strings.Contains(entry.Text, "no such column") {
		t.Errorf("Expected detail in error entry, got %q", entry.Text)
	}
	if c.Phase() != PhaseDatasetBound {
		t.Error("Expected failed query to keep the dataset bound")
	}
	if c.Busy() {
		t.Error("Expected busy to be cleared after failed query")
	}
}

func TestDispatchNoOps(t *testing.T) {
	t.Run("empty and whitespace questions", func(t *testing.T) {
		svc := &fakeService{queryResp: &api.QueryResponse{Success: true}}
		c := boundController(t, svc)
		before := c.Snapshot()

		for _, q := range []string{"", "   ", "\n\t"} {
			if _, ok := c.Ask(context.Background(), q); ok {
				t.Errorf("Ask(%q) should be a no-op", q)
			}
		}
		after := c.Snapshot()
		if len(after.History) != len(before.History) {
			t.Errorf("History changed from %d to %d entries", len(before.History), len(after.History))
		}
		if len(svc.questions) != 0 {
			t.Errorf("Expected no service calls, got %d", len(svc.questions))
		}
	})

	t.Run("no dataset bound", func(t *testing.T) {
		svc := &fakeService{queryResp: &api.QueryResponse{Success: true}}
		c := NewController(svc)
		if _, ok := c.Ask(context.Background(), "hello"); ok {
			t.Error("Expected dispatch without dataset to be a no-op")
		}
		if len(c.History()) != 0 {
			t.Error("Expected empty history")
		}
	})
}

func TestBusyGateRejectsConcurrentOperations(t *testing.T) {
	svc := &fakeService{}
	c := boundController(t, svc)
	svc.queryResp = &api.QueryResponse{Success: true, Explanation: "done"}
	svc.started = make(chan struct{})
	svc.gate = make(chan struct{})

	op, ok := c.BeginQuery("first")
	if !ok {
		t.Fatal("Expected first query to be accepted")
	}
	if !c.Busy() {
		t.Error("Expected busy while the query is in flight")
	}

	done := make(chan model.Entry)
	go func() {
		entry, _ := op.Run(context.Background())
		done <- entry
	}()
	<-svc.started

	before := len(c.History())
	if _, ok := c.BeginQuery("second"); ok {
		t.Error("Expected second query to be rejected while busy")
	}
	if _, ok := c.BeginUpload(salesFile()); ok {
		t.Error("Expected upload to be rejected while busy")
	}
	if c.CanSubmit() {
		t.Error("Expected CanSubmit to be false while busy")
	}
	if len(c.History()) != before {
		t.Error("Rejected submit must not append entries")
	}

	close(svc.gate)
	entry := <-done
	if entry.Text != "done" {
		t.Errorf("Expected first query outcome, got %q", entry.Text)
	}
	if c.Busy() {
		t.Error("Expected busy to be cleared once the query settled")
	}
	if len(svc.questions) != 1 {
		t.Errorf("Expected exactly one service call, got %d", len(svc.questions))
	}
}

func TestPendingQueryClearedOnDispatch(t *testing.T) {
	svc := &fakeService{queryResp: &api.QueryResponse{Success: true}}
	c := boundController(t, svc)

	c.SetPendingQuery("average order value")
	op, ok := c.BeginQuery(c.PendingQuery())
	if !ok {
		t.Fatal("Expected query to be accepted")
	}
	if c.PendingQuery() != "" {
		t.Errorf("Expected pending query cleared before the call, got %q", c.PendingQuery())
	}
	last := c.History()[len(c.History())-1]
	if last.Role != model.RoleUser {
		t.Errorf("Expected user echo appended before the call, got %s", last.Role)
	}
	op.Run(context.Background())
}

func TestStartNewFileResetsEverything(t *testing.T) {
	svc := &fakeService{queryResp: &api.QueryResponse{Success: true}}
	c := boundController(t, svc)
	c.Ask(context.Background(), "q")
	c.SetPendingQuery("half typed")

	for i := 0; i < 2; i++ {
		c.StartNewFile()
		snap := c.Snapshot()
		if snap.Dataset != nil || len(snap.History) != 0 || snap.PendingQuery != "" {
			t.Fatalf("Reset %d left state %+v", i+1, snap)
		}
		if snap.Phase() != PhaseNoDataset {
			t.Errorf("Expected no-dataset phase after reset, got %v", snap.Phase())
		}
	}

	if _, ok := c.Upload(context.Background(), salesFile()); !ok {
		t.Error("Expected upload to be available again after reset")
	}
}

type resetRecorder struct {
	appended int
	cleared  []int
}

func (r *resetRecorder) EntryAppended(model.Entry) { r.appended++ }
func (r *resetRecorder) Cleared(dropped int)       { r.cleared = append(r.cleared, dropped) }

func TestStartNewFileNotifiesResetObservers(t *testing.T) {
	rec := &resetRecorder{}
	svc := &fakeService{uploadResp: salesUpload(), queryResp: &api.QueryResponse{Success: true}}
	c := NewController(svc, WithObservers(rec))

	c.Upload(context.Background(), salesFile())
	c.Ask(context.Background(), "q")
	c.StartNewFile()

	if rec.appended != 3 {
		t.Errorf("Expected 3 appended entries, got %d", rec.appended)
	}
	if len(rec.cleared) != 1 || rec.cleared[0] != 3 {
		t.Errorf("Cleared calls = %v, want [3]", rec.cleared)
	}
}

func TestResetDuringInFlightQueryDiscardsOutcome(t *testing.T) {
	svc := &fakeService{}
	c := boundController(t, svc)
	svc.queryResp = &api.QueryResponse{Success: true, Explanation: "late"}
	svc.started = make(chan struct{})
	svc.gate = make(chan struct{})

	op, _ := c.BeginQuery("slow")
	done := make(chan bool)
	go func() {
		_, committed := op.Run(context.Background())
		done <- committed
	}()
	<-svc.started

	c.StartNewFile()
	close(svc.gate)

	if committed := <-done; committed {
		t.Error("Expected outcome of a pre-reset query to be discarded")
	}
	if len(c.History()) != 0 {
		t.Errorf("Expected fresh session to stay empty, got %d entries", len(c.History()))
	}
	if c.Busy() {
		t.Error("Expected busy cleared after the discarded query settled")
	}
}

func TestAgentEntryNormalization(t *testing.T) {
	plotly := json.RawMessage(`{"data":[{"type":"scatter","x":[1,2],"y":[3,4]}],"layout":{}}`)
	rows := []model.Row{model.NewRow("a", 1), model.NewRow("a", 2)}
	now := time.Now()

	tests := []struct {
		name      string
		resp      api.QueryResponse
		wantKind  model.ResultKind
		wantText  string
		wantRows  int
		wantTable bool
	}{
		{
			name:     "chart response",
			resp:     api.QueryResponse{Success: true, Explanation: "Revenue grew", Chart: &api.ChartPayload{Type: "line", PlotlyJSON: plotly}},
			wantKind: model.ResultChart,
			wantText: "Revenue grew",
		},
		{
			name:      "table response",
			resp:      api.QueryResponse{Success: true, Explanation: "rows", Chart: &api.ChartPayload{Type: "table"}, Data: rows},
			wantKind:  model.ResultTable,
			wantText:  "rows",
			wantRows:  2,
			wantTable: true,
		},
		{
			name:      "table chart carrying its own rows",
			resp:      api.QueryResponse{Success: true, Explanation: "rows", Chart: &api.ChartPayload{Type: "table", Data: rows}},
			wantKind:  model.ResultTable,
			wantText:  "rows",
			wantRows:  2,
			wantTable: true,
		},
		{
			name:      "data without chart",
			resp:      api.QueryResponse{Success: true, Explanation: "plain", Data: rows},
			wantKind:  model.ResultNarrative,
			wantText:  "plain",
			wantRows:  2,
			wantTable: true,
		},
		{
			name:     "failed SQL falls back to fallback explanation",
			resp:     api.QueryResponse{Success: false, Error: "SQL execution error", FallbackExplanation: "Showing raw data overview"},
			wantKind: model.ResultNarrative,
			wantText: "Showing raw data overview",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp
			entry := agentEntry(&resp, now)
			if entry.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", entry.Kind, tt.wantKind)
			}
			if entry.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", entry.Text, tt.wantText)
			}
			if (entry.Table != nil) != tt.wantTable {
				t.Errorf("Table present = %v, want %v", entry.Table != nil, tt.wantTable)
			}
			if entry.Table.Len() != tt.wantRows {
				t.Errorf("rows = %d, want %d", entry.Table.Len(), tt.wantRows)
			}
			if entry.Success == nil || *entry.Success != resp.Success {
				t.Errorf("Success flag not passed through: %v", entry.Success)
			}
			if entry.Notice != resp.Error {
				t.Errorf("Notice = %q, want %q", entry.Notice, resp.Error)
			}
		})
	}
}

func TestFileFromPath(t *testing.T) {
	tests := []struct {
		input    string
		wantNil  bool
		wantName string
	}{
		{"", true, ""},
		{"   ", true, ""},
		{"''", true, ""},
		{"/data/sales.xlsx", false, "sales.xlsx"},
		{"'/data/q1 report.xlsx'", false, "q1 report.xlsx"},
		{`/data/q1\ report.xlsx`, false, "q1 report.xlsx"},
		{`"/data/x.xls"`, false, "x.xls"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f := FileFromPath(tt.input)
			if tt.wantNil {
				if f != nil {
					t.Errorf("FileFromPath(%q) = %v, want nil", tt.input, f)
				}
				return
			}
			if f == nil {
				t.Fatalf("FileFromPath(%q) = nil", tt.input)
			}
			if f.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", f.Name(), tt.wantName)
			}
		})
	}
}
