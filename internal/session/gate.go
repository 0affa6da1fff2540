package session

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// gate is the single-flight busy gate shared by uploads and queries.
// A second operation while one is in flight is rejected, never queued.
type gate struct {
	sem  *semaphore.Weighted
	busy atomic.Bool
}

func newGate() *gate {
	return &gate{sem: semaphore.NewWeighted(1)}
}

func (g *gate) tryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.busy.Store(true)
	return true
}

func (g *gate) release() {
	g.busy.Store(false)
	g.sem.Release(1)
}

func (g *gate) isBusy() bool {
	return g.busy.Load()
}
