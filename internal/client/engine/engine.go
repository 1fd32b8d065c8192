// Package engine runs synchronization passes between the local place store
// and the remote places service.
//
// A pass goes Idle -> Pulling -> Reconciling -> Pushing -> Finalizing -> Idle.
// The pull cursor is saved only when the pass got through without a network
// or storage failure, so the next pass restarts from the last good point.
// RunSyncPass never returns an error: the outcome, per-record failures and
// the abort reason are reported in Result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/placesync/internal/client/client"
	"github.com/dmitrijs2005/placesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/placesync/internal/client/repositories/places"
	"github.com/dmitrijs2005/placesync/internal/logging"
)

type State string

const (
	StateIdle        State = "idle"
	StatePulling     State = "pulling"
	StateReconciling State = "reconciling"
	StatePushing     State = "pushing"
	StateFinalizing  State = "finalizing"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePartial   Outcome = "partial"
	OutcomeAborted   Outcome = "aborted"
	// OutcomeCoalesced means another pass was already running; it will run
	// once more after finishing instead.
	OutcomeCoalesced Outcome = "coalesced"
)

// Failure is one record that could not be reconciled or pushed.
type Failure struct {
	ID  string
	Op  string
	Err error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Op, f.ID, f.Err)
}

type Result struct {
	Outcome   Outcome
	Pulled    int
	Applied   int
	Pushed    int
	Conflicts int
	// Skipped counts remote values not written because the user edited the
	// record while the pass was running.
	Skipped  int
	Purged   int64
	Failures []Failure
	// Err is the abort reason when Outcome is OutcomeAborted.
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Error joins the abort reason and every per-record failure, nil on success.
func (r Result) Error() error {
	errs := make([]error, 0, len(r.Failures)+1)
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// errSkipped marks a record left alone because a newer local edit is pending.
var errSkipped = errors.New("skipped: newer local edit pending")

type Config struct {
	// PurgeDeleted removes acknowledged tombstones at the end of a pass.
	PurgeDeleted bool
	Now          func() time.Time
}

type Engine struct {
	store  places.Repository
	meta   *metadata.SyncState
	remote client.Client
	log    logging.Logger
	cfg    Config

	mu      sync.Mutex
	running bool
	pending bool
	status  Status
	subs    *broadcaster
}

func New(store places.Repository, meta metadata.Repository, remote client.Client, log logging.Logger, cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:  store,
		meta:   metadata.NewSyncState(meta),
		remote: remote,
		log:    log.With("module", "sync_engine"),
		cfg:    cfg,
		status: Status{State: StateIdle},
		subs:   newBroadcaster(),
	}
}

func (e *Engine) now() time.Time { return e.cfg.Now().UTC() }

// RunSyncPass runs one pass. A call made while a pass is in flight returns
// OutcomeCoalesced straight away and schedules a single follow-up pass.
func (e *Engine) RunSyncPass(ctx context.Context) Result {
	e.mu.Lock()
	if e.running {
		e.pending = true
		e.mu.Unlock()
		e.log.Debug(ctx, "sync pass already running, coalesced")
		return Result{Outcome: OutcomeCoalesced}
	}
	e.running = true
	e.mu.Unlock()

	for {
		res := e.safePass(ctx)

		e.mu.Lock()
		again := e.pending && ctx.Err() == nil
		e.pending = false
		if !again {
			e.running = false
		}
		e.mu.Unlock()

		if !again {
			return res
		}
		e.log.Debug(ctx, "running coalesced follow-up pass")
	}
}

func (e *Engine) safePass(ctx context.Context) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeAborted
			res.Err = fmt.Errorf("sync pass panicked: %v", p)
			res.FinishedAt = e.now()
			e.log.Error(ctx, "sync pass panicked", "panic", p)
			e.finish(ctx, res)
		}
	}()
	return e.pass(ctx)
}

func (e *Engine) pass(ctx context.Context) Result {
	res := Result{StartedAt: e.now()}
	cursorSafe := true

	e.setState(StatePulling)
	cursor, err := e.meta.Cursor(ctx)
	if err != nil {
		return e.abort(ctx, res, fmt.Errorf("read cursor: %w", err))
	}

	remotes, next, err := e.remote.ListPlaces(ctx, cursor)
	if err != nil {
		return e.abort(ctx, res, fmt.Errorf("pull: %w", err))
	}
	res.Pulled = len(remotes)

	e.setState(StateReconciling)
	for _, r := range remotes {
		if err := ctx.Err(); err != nil {
			return e.abort(ctx, res, err)
		}
		if err := e.reconcile(ctx, r, &res); err != nil && !errors.Is(err, errSkipped) {
			res.Failures = append(res.Failures, Failure{ID: r.ID, Op: "reconcile", Err: err})
			cursorSafe = false
			e.log.Warn(ctx, "reconcile failed", "id", r.ID, "error", err)
		}
	}

	e.setState(StatePushing)
	pending, err := e.store.ListUnsynced(ctx)
	if err != nil {
		return e.abort(ctx, res, fmt.Errorf("list unsynced: %w", err))
	}
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return e.abort(ctx, res, err)
		}
		err := e.push(ctx, p, &res)
		switch {
		case err == nil, errors.Is(err, errSkipped):
		case errors.Is(err, client.ErrUnauthorized), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return e.abort(ctx, res, fmt.Errorf("push %s: %w", p.ID, err))
		default:
			if errors.Is(err, client.ErrUnavailable) {
				cursorSafe = false
			}
			res.Failures = append(res.Failures, Failure{ID: p.ID, Op: "push", Err: err})
			e.log.Warn(ctx, "push failed", "id", p.ID, "error", err)
		}
	}

	e.setState(StateFinalizing)
	if cursorSafe {
		if err := e.meta.SetCursor(ctx, next); err != nil {
			res.Failures = append(res.Failures, Failure{Op: "save cursor", Err: err})
		}
	}
	if e.cfg.PurgeDeleted {
		n, err := e.store.PurgeDeleted(ctx)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Op: "purge", Err: err})
		}
		res.Purged = n
	}

	res.FinishedAt = e.now()
	if err := e.meta.SetLastSyncAt(ctx, res.FinishedAt); err != nil {
		res.Failures = append(res.Failures, Failure{Op: "save last sync", Err: err})
	}

	res.Outcome = OutcomeSucceeded
	if len(res.Failures) > 0 {
		res.Outcome = OutcomePartial
	}

	e.log.Info(ctx, "sync pass finished",
		"outcome", res.Outcome, "pulled", res.Pulled, "applied", res.Applied,
		"pushed", res.Pushed, "conflicts", res.Conflicts, "skipped", res.Skipped, "failures", len(res.Failures))

	e.finish(ctx, res)
	return res
}

func (e *Engine) abort(ctx context.Context, res Result, err error) Result {
	res.Outcome = OutcomeAborted
	res.Err = err
	res.FinishedAt = e.now()
	e.log.Error(ctx, "sync pass aborted", "error", err, "pushed", res.Pushed)
	e.finish(ctx, res)
	return res
}
