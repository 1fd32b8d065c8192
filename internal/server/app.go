// Package server wires the placesync REST server: PostgreSQL storage,
// migrations, services and the HTTP transport.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/placesync/internal/logging"
	"github.com/dmitrijs2005/placesync/internal/server/config"
	"github.com/dmitrijs2005/placesync/internal/server/httpapi"
	"github.com/dmitrijs2005/placesync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/placesync/internal/server/services"
)

var (
	openDB               = repomanager.OpenPostgres
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
	newConnectBackOff    = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = 30 * time.Second
		return b
	}
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	logCloser    io.Closer
	db           *sql.DB
	userService  *services.UserService
	placeService *services.PlaceService
}

// NewApp connects to the database, retrying while it comes up, applies
// migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	var logger logging.Logger
	logger, logCloser := logging.New(c.Log)

	var db *sql.DB
	connect := func() error {
		var err error
		db, err = openDB(ctx, c.DatabaseDSN)
		return err
	}
	err := backoff.RetryNotify(connect, backoff.WithContext(newConnectBackOff(), ctx), func(err error, d time.Duration) {
		logger.Warn(ctx, "database not ready", "error", err, "retry_in", d)
	})
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return &App{
		config:       c,
		logger:       logger,
		logCloser:    logCloser,
		db:           db,
		userService:  services.NewUserService(db, rm, c),
		placeService: services.NewPlaceService(db, rm),
	}, nil
}

// IssueToken returns an access token for userName, creating the user if
// needed.
func (app *App) IssueToken(ctx context.Context, userName string) (string, error) {
	return app.userService.IssueToken(ctx, userName)
}

// Run serves the API until ctx is cancelled, then releases resources.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")

	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.placeService, app.userService, app.config.ShutdownTimeout)
	err := s.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
	}

	return errors.Join(err, app.Close())
}

func (app *App) Close() error {
	return errors.Join(app.db.Close(), app.logCloser.Close())
}
