package engine

import (
	"context"
	"sync"
	"time"
)

// Status is what a UI needs to render sync state.
type Status struct {
	State         State
	IsSyncing     bool
	LastSyncAt    time.Time
	LastOutcome   Outcome
	LastError     error
	UnsyncedCount int
}

// Status returns the current snapshot with a fresh unsynced count.
func (e *Engine) Status(ctx context.Context) Status {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()

	if n, err := e.store.CountUnsynced(ctx); err == nil {
		st.UnsyncedCount = n
	}
	if st.LastSyncAt.IsZero() {
		if t, err := e.meta.LastSyncAt(ctx); err == nil {
			st.LastSyncAt = t
		}
	}
	return st
}

// Subscribe delivers a snapshot on every state change. Slow listeners miss
// intermediate snapshots rather than blocking the pass.
func (e *Engine) Subscribe(buffer int) (<-chan Status, func()) {
	return e.subs.subscribe(buffer)
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.status.State = s
	e.status.IsSyncing = s != StateIdle
	st := e.status
	e.mu.Unlock()

	e.subs.publish(st)
}

func (e *Engine) finish(ctx context.Context, res Result) {
	n, countErr := e.store.CountUnsynced(ctx)

	e.mu.Lock()
	e.status.State = StateIdle
	e.status.IsSyncing = false
	e.status.LastOutcome = res.Outcome
	e.status.LastError = res.Error()
	if res.Outcome != OutcomeAborted {
		e.status.LastSyncAt = res.FinishedAt
	}
	if countErr == nil {
		e.status.UnsyncedCount = n
	}
	st := e.status
	e.mu.Unlock()

	e.subs.publish(st)
}

type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Status
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Status)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Status, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Status, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broadcaster) publish(st Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- st:
		default:
		}
	}
}
