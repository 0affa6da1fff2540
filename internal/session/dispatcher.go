package session

import (
	"context"
	"strings"
	"time"

	"github.com/iammorganparry/datachat/internal/api"
	"github.com/iammorganparry/datachat/internal/model"
)

// Querier asks the analysis service a question about a bound dataset
type Querier interface {
	Query(ctx context.Context, tableID, question string) (*api.QueryResponse, error)
}

// Dispatcher sends questions against the bound dataset
type Dispatcher struct {
	svc   Querier
	state *sessionState
}

// Begin validates the question, claims the busy gate, appends the user echo
// and clears the pending query. It is a no-op returning false when the
// trimmed question is empty, no dataset is bound, or the session is busy.
func (d *Dispatcher) Begin(question string) (*Op, bool) {
	s := d.state
	q := strings.TrimSpace(question)
	if q == "" {
		s.logger.Debug("query ignored", "reason", "empty question")
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == nil {
		s.logger.Debug("query ignored", "reason", "no dataset bound")
		return nil, false
	}
	if !s.gate.tryAcquire() {
		s.logger.Debug("query ignored", "reason", "busy")
		return nil, false
	}

	tableID := s.dataset.TableID
	gen := s.generation
	s.store.Append(model.NewEntry(model.RoleUser, q, s.now()))
	s.pending = ""

	return &Op{
		kind: OpQuery,
		run: func(ctx context.Context) (model.Entry, bool) {
			defer s.gate.release()
			return d.run(ctx, gen, tableID, q)
		},
	}, true
}

// Dispatch asks question and appends the user echo and the outcome entry
func (d *Dispatcher) Dispatch(ctx context.Context, question string) (model.Entry, bool) {
	op, ok := d.Begin(question)
	if !ok {
		return model.Entry{}, false
	}
	return op.Run(ctx)
}

func (d *Dispatcher) run(ctx context.Context, gen uint64, tableID, question string) (model.Entry, bool) {
	s := d.state
	start := time.Now()

	resp, err := d.svc.Query(ctx, tableID, question)
	var entry model.Entry
	switch {
	case err != nil:
		opErr := &OpError{Op: OpQuery, Cause: serviceCause(err), Err: err}
		s.logger.Warn("query failed", "table_id", tableID, "cause", opErr.Cause, "error", err)
		entry = model.NewEntry(model.RoleError, queryFailedPrefix+opErr.Cause, s.now())
	case resp == nil:
		s.logger.Warn("query failed", "table_id", tableID, "cause", "empty response")
		entry = model.NewEntry(model.RoleError, queryFailedPrefix+"the service returned an empty response", s.now())
	default:
		entry = agentEntry(resp, s.now())
		s.logger.Info("query answered",
			"table_id", tableID,
			"kind", entry.Kind.String(),
			"rows", entry.Table.Len(),
			"success", resp.Success,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	committed := s.commit(gen, func() { s.store.Append(entry) })
	return entry, committed
}

// agentEntry normalizes the loosely shaped wire response into an entry whose
// Kind names exactly one presentation mode.
func agentEntry(resp *api.QueryResponse, now time.Time) model.Entry {
	text := resp.Explanation
	if strings.TrimSpace(text) == "" {
		text = resp.FallbackExplanation
	}

	entry := model.NewEntry(model.RoleAgent, text, now)
	success := resp.Success
	entry.Success = &success
	entry.Insight = strings.TrimSpace(string(resp.Insights))
	entry.Notice = strings.TrimSpace(resp.Error)

	if resp.Data != nil {
		entry.Table = &model.Table{Rows: resp.Data}
	}
	if resp.Chart != nil {
		entry.Chart = &model.ChartHint{Kind: resp.Chart.Type, Renderable: resp.Chart.PlotlyJSON}
		// Table-kind charts carry their own rows when top-level data is absent
		if entry.Table == nil && entry.Chart.IsTable() && resp.Chart.Data != nil {
			entry.Table = &model.Table{Rows: resp.Chart.Data}
		}
	}

	entry.Kind = model.ResolveKind(entry.Table, entry.Chart)
	return entry
}
