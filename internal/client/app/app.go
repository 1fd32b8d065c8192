// Package app wires the embedded sync client: local database, place service,
// sync engine and scheduler, all built from one config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/placesync/internal/client/client"
	"github.com/dmitrijs2005/placesync/internal/client/config"
	"github.com/dmitrijs2005/placesync/internal/client/engine"
	"github.com/dmitrijs2005/placesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/placesync/internal/client/scheduler"
	"github.com/dmitrijs2005/placesync/internal/client/services"
	"github.com/dmitrijs2005/placesync/internal/logging"
	"github.com/google/uuid"
)

type App struct {
	config    *config.Config
	db        *sql.DB
	log       logging.Logger
	logCloser io.Closer
	deviceID  string
	remote    client.Client

	places    services.PlaceService
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
}

// NewApp opens the local database and builds the sync stack. The remote
// client is optional: pass nil to talk HTTP to cfg.ServerEndpointAddr.
func NewApp(ctx context.Context, c *config.Config, remote client.Client) (*App, error) {
	var log logging.Logger
	log, logCloser := logging.New(c.Log)

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		_ = logCloser.Close()
		return nil, err
	}

	repos := client.NewRepositories(db)

	deviceID, err := metadata.NewSyncState(repos.Metadata).DeviceID(ctx, uuid.NewString)
	if err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, fmt.Errorf("device id: %w", err)
	}
	log = log.With("device_id", deviceID)

	if remote == nil {
		remote = client.NewHTTPClient(c.ServerEndpointAddr, client.StaticToken(c.AccessToken), c.RequestTimeout,
			client.WithDeviceID(deviceID))
	}

	eng := engine.New(repos.Places, repos.Metadata, remote, log, engine.Config{PurgeDeleted: c.PurgeDeleted})
	sch := scheduler.New(eng, remote, log, scheduler.Config{
		Interval:            c.SyncInterval,
		OnlineCheckInterval: c.OnlineCheckInterval,
		Backoff: scheduler.BackoffConfig{
			MaxAttempts:    c.Backoff.MaxAttempts,
			InitialBackoff: c.Backoff.InitialBackoff,
			Multiplier:     c.Backoff.Multiplier,
		},
	})

	return &App{
		config:    c,
		db:        db,
		log:       log,
		logCloser: logCloser,
		deviceID:  deviceID,
		remote:    remote,
		places:    services.NewPlaceService(repos.Places, "", services.WithOnChange(sch.Trigger)),
		engine:    eng,
		scheduler: sch,
	}, nil
}

func (a *App) Places() services.PlaceService { return a.places }

func (a *App) Engine() *engine.Engine { return a.engine }

func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

func (a *App) DeviceID() string { return a.deviceID }

// ServerStatus asks the server which device synced last and when.
func (a *App) ServerStatus(ctx context.Context) (*client.SyncStatus, error) {
	sr, ok := a.remote.(client.StatusReader)
	if !ok {
		return nil, fmt.Errorf("server status: %w", errors.ErrUnsupported)
	}
	return sr.SyncStatus(ctx)
}

// Run starts background sync and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	st := a.engine.Status(ctx)
	a.log.Info(ctx, "sync client started",
		"server", a.config.ServerEndpointAddr, "unsynced", st.UnsyncedCount, "last_sync_at", st.LastSyncAt)

	a.scheduler.Start(ctx)
	<-ctx.Done()
	a.scheduler.Stop()

	a.log.Info(context.Background(), "sync client stopped")
	return a.Close()
}

func (a *App) Close() error {
	a.scheduler.Stop()
	return errors.Join(a.db.Close(), a.logCloser.Close())
}
