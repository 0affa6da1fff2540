package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/iammorganparry/datachat/internal/conversation"
	"github.com/iammorganparry/datachat/internal/model"
)

// Service is the analysis service as seen by the session
type Service interface {
	Ingester
	Querier
}

// Controller owns the session state and is its single source of truth.
// Upload is only available with no dataset bound; queries only with one.
type Controller struct {
	state      *sessionState
	binder     *Binder
	dispatcher *Dispatcher
}

// Option configures a Controller
type Option func(*sessionState)

// WithLogger sets the logger for session events
func WithLogger(l *slog.Logger) Option {
	return func(s *sessionState) { s.logger = l }
}

// WithClock overrides the entry timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *sessionState) { s.now = now }
}

// WithObservers registers observers notified of every appended entry
func WithObservers(observers ...conversation.Observer) Option {
	return func(s *sessionState) { s.store = conversation.NewStore(observers...) }
}

// NewController creates a controller in the no-dataset phase
func NewController(svc Service, opts ...Option) *Controller {
	state := &sessionState{
		store:  conversation.NewStore(),
		gate:   newGate(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(state)
	}
	return &Controller{
		state:      state,
		binder:     &Binder{svc: svc, state: state},
		dispatcher: &Dispatcher{svc: svc, state: state},
	}
}

// BeginUpload starts binding file; see Binder.Begin
func (c *Controller) BeginUpload(file File) (*Op, bool) {
	return c.binder.Begin(file)
}

// BeginQuery starts dispatching question; see Dispatcher.Begin
func (c *Controller) BeginQuery(question string) (*Op, bool) {
	return c.dispatcher.Begin(question)
}

// Upload binds file and blocks until the outcome entry is appended
func (c *Controller) Upload(ctx context.Context, file File) (model.Entry, bool) {
	return c.binder.Bind(ctx, file)
}

// Ask dispatches question and blocks until the outcome entry is appended
func (c *Controller) Ask(ctx context.Context, question string) (model.Entry, bool) {
	return c.dispatcher.Dispatch(ctx, question)
}

// SetPendingQuery records the text currently being typed
func (c *Controller) SetPendingQuery(text string) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.pending = text
}

// PendingQuery returns the text currently being typed
func (c *Controller) PendingQuery() string {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.pending
}

// StartNewFile returns to the no-dataset phase, clearing the dataset, the
// history and the pending query in one update. An operation still in flight
// finishes but its outcome is discarded.
func (c *Controller) StartNewFile() {
	s := c.state
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dataset = nil
	s.pending = ""
	s.store.Clear()
	s.generation++
	s.logger.Info("session reset")
}

// Phase returns the current macro-state
func (c *Controller) Phase() Phase {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	if c.state.dataset != nil {
		return PhaseDatasetBound
	}
	return PhaseNoDataset
}

// Busy reports whether an upload or query is in flight
func (c *Controller) Busy() bool {
	return c.state.gate.isBusy()
}

// CanSubmit reports whether a question would currently be accepted
func (c *Controller) CanSubmit() bool {
	return c.Phase() == PhaseDatasetBound && !c.Busy()
}

// Dataset returns the bound dataset, if any
func (c *Controller) Dataset() (model.UploadResult, bool) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	if c.state.dataset == nil {
		return model.UploadResult{}, false
	}
	return *c.state.dataset, true
}

// History returns the conversation in insertion order
func (c *Controller) History() []model.Entry {
	return c.state.store.Entries()
}

// Snapshot returns a copy of the whole session state
func (c *Controller) Snapshot() State {
	s := c.state
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := State{
		History:      s.store.Entries(),
		PendingQuery: s.pending,
		Busy:         s.gate.isBusy(),
	}
	if s.dataset != nil {
		ds := *s.dataset
		snap.Dataset = &ds
	}
	return snap
}
