package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iammorganparry/datachat/internal/conversation"
	"github.com/iammorganparry/datachat/internal/model"
)

// Phase is the controller's macro-state
type Phase int

const (
	PhaseNoDataset Phase = iota
	PhaseDatasetBound
)

func (p Phase) String() string {
	if p == PhaseDatasetBound {
		return "dataset-bound"
	}
	return "no-dataset"
}

// State is a point-in-time copy of the session, safe to hand to renderers
type State struct {
	Dataset      *model.UploadResult
	History      []model.Entry
	PendingQuery string
	Busy         bool
}

// Phase derives the macro-state from the snapshot
func (s State) Phase() Phase {
	if s.Dataset != nil {
		return PhaseDatasetBound
	}
	return PhaseNoDataset
}

// sessionState is the live state shared by the binder, the dispatcher and
// the controller. generation increments on every reset so that an operation
// started before a reset cannot write into the fresh session.
type sessionState struct {
	mu         sync.Mutex
	dataset    *model.UploadResult
	pending    string
	generation uint64

	store  *conversation.Store
	gate   *gate
	logger *slog.Logger
	now    func() time.Time
}

// commit runs fn under the state lock if no reset happened since gen
func (s *sessionState) commit(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	fn()
	return true
}

// Op is an accepted single-flight operation. The busy gate is already held;
// Run performs the service call, records the outcome and releases the gate.
// Run must be called exactly once; later calls return the zero entry.
type Op struct {
	kind string
	once sync.Once
	run  func(ctx context.Context) (model.Entry, bool)
}

// Kind returns OpUpload or OpQuery
func (o *Op) Kind() string { return o.kind }

// Run executes the operation. committed is false when the session was reset
// while the call was in flight and the outcome was discarded.
func (o *Op) Run(ctx context.Context) (entry model.Entry, committed bool) {
	o.once.Do(func() {
		entry, committed = o.run(ctx)
	})
	return entry, committed
}
