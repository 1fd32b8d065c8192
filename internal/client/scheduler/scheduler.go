// Package scheduler decides when the sync engine runs: on a timer, on demand,
// when the app comes to the foreground and when connectivity returns.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/placesync/internal/client/client"
	"github.com/dmitrijs2005/placesync/internal/client/engine"
	"github.com/dmitrijs2005/placesync/internal/logging"
)

const (
	DefaultInterval            = 15 * time.Minute
	DefaultOnlineCheckInterval = time.Minute
)

// Health is the coarse sync indicator shown to the user.
type Health string

const (
	HealthOK Health = "ok"
	// HealthOffline means the server was unreachable at the last attempt.
	HealthOffline Health = "offline"
	// HealthSyncError means every bounded retry attempt failed.
	HealthSyncError Health = "sync_error"
	// HealthReauth means the server rejected the credentials.
	HealthReauth Health = "reauthenticate"
)

type Syncer interface {
	RunSyncPass(ctx context.Context) engine.Result
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type BackoffConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
}

type Config struct {
	Interval            time.Duration
	OnlineCheckInterval time.Duration
	Backoff             BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		Interval:            DefaultInterval,
		OnlineCheckInterval: DefaultOnlineCheckInterval,
		Backoff: BackoffConfig{
			MaxAttempts:    5,
			InitialBackoff: 2 * time.Second,
			Multiplier:     2,
		},
	}
}

type Scheduler struct {
	syncer Syncer
	pinger Pinger
	log    logging.Logger
	cfg    Config

	trigger chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu      sync.RWMutex
	running bool
	health  Health
	lastErr error
	last    engine.Result
}

func New(syncer Syncer, pinger Pinger, log logging.Logger, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.OnlineCheckInterval <= 0 {
		cfg.OnlineCheckInterval = def.OnlineCheckInterval
	}
	if cfg.Backoff.MaxAttempts < 1 {
		cfg.Backoff.MaxAttempts = 1
	}
	if cfg.Backoff.InitialBackoff <= 0 {
		cfg.Backoff.InitialBackoff = def.Backoff.InitialBackoff
	}
	if cfg.Backoff.Multiplier < 1 {
		cfg.Backoff.Multiplier = def.Backoff.Multiplier
	}
	return &Scheduler{
		syncer:  syncer,
		pinger:  pinger,
		log:     log.With("module", "sync_scheduler"),
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
		health:  HealthOK,
	}
}

// Start runs the background loop until ctx is done or Stop is called. The
// first pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
	s.Trigger()

	s.log.Info(ctx, "sync scheduler started", "interval", s.cfg.Interval.String())
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// Trigger asks the background loop for a pass without waiting for it.
// Triggers that arrive while one is queued are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// OnForeground is the app-foreground and login hook.
func (s *Scheduler) OnForeground() { s.Trigger() }

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	online := time.NewTicker(s.cfg.OnlineCheckInterval)
	defer online.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		case <-s.trigger:
		case <-online.C:
			// only used to notice that connectivity came back
			if s.Health() != HealthOffline {
				continue
			}
		}
		_, _ = s.SyncNow(ctx)
	}
}

// SyncNow runs a pass on the caller's goroutine, retrying failed passes with
// exponential backoff. When the server is unreachable it does nothing and
// returns a zero Result with a nil error.
func (s *Scheduler) SyncNow(ctx context.Context) (engine.Result, error) {
	if err := s.pinger.Ping(ctx); err != nil {
		s.log.Debug(ctx, "server unreachable, skipping sync", "error", err)
		s.setHealth(HealthOffline, nil)
		return engine.Result{}, nil
	}

	var res engine.Result
	op := func() error {
		res = s.syncer.RunSyncPass(ctx)
		return retryable(ctx, res)
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn(ctx, "sync pass failed, retrying", "error", err, "wait", wait.String())
	}

	err := backoff.RetryNotify(op, backoff.WithContext(s.policy(), ctx), notify)
	s.record(ctx, res, err)
	return res, err
}

func (s *Scheduler) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.Backoff.InitialBackoff
	b.Multiplier = s.cfg.Backoff.Multiplier
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(s.cfg.Backoff.MaxAttempts-1))
}

// retryable maps a pass result to the error seen by the retry loop. Only
// transient network failures are retried.
func retryable(ctx context.Context, res engine.Result) error {
	switch res.Outcome {
	case engine.OutcomeSucceeded, engine.OutcomeCoalesced:
		return nil
	case engine.OutcomeAborted:
		if errors.Is(res.Err, client.ErrUnauthorized) || ctx.Err() != nil {
			return backoff.Permanent(res.Err)
		}
		return res.Err
	}

	err := res.Error()
	if errors.Is(err, client.ErrUnavailable) {
		return err
	}
	// the remaining failures are left for the next scheduled pass
	return nil
}

func (s *Scheduler) record(ctx context.Context, res engine.Result, err error) {
	switch {
	case err == nil:
		s.setHealth(HealthOK, res.Error())
	case errors.Is(err, client.ErrUnauthorized):
		s.log.Warn(ctx, "credentials rejected, sync paused until re-authentication")
		s.setHealth(HealthReauth, err)
	default:
		s.log.Error(ctx, "sync failed after retries", "error", err, "attempts", s.cfg.Backoff.MaxAttempts)
		s.setHealth(HealthSyncError, err)
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
}

func (s *Scheduler) setHealth(h Health, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = h
	s.lastErr = err
}

func (s *Scheduler) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// LastError is the error behind the current Health, or the per-record
// failures of the last partial pass.
func (s *Scheduler) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Scheduler) LastResult() engine.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
