// Package httpapi serves the REST sync API consumed by placesync clients.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/placesync/internal/logging"
	"golang.org/x/sync/errgroup"
)

type HTTPServer struct {
	address         string
	places          PlaceService
	auth            Authenticator
	logger          logging.Logger
	shutdownTimeout time.Duration
}

func NewHTTPServer(a string, l logging.Logger, ps PlaceService, auth Authenticator, shutdownTimeout time.Duration) *HTTPServer {
	return &HTTPServer{
		address:         a,
		logger:          l.With("module", "http_server"),
		places:          ps,
		auth:            auth,
		shutdownTimeout: shutdownTimeout,
	}
}

// Handler returns the routed API with its middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	protected := Auth(s.auth)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/ping", s.ping)
	mux.Handle("GET /api/v1/places", protected(http.HandlerFunc(s.listPlaces)))
	mux.Handle("GET /api/v1/places/{id}", protected(http.HandlerFunc(s.getPlace)))
	mux.Handle("PUT /api/v1/places/{id}", protected(http.HandlerFunc(s.putPlace)))
	mux.Handle("DELETE /api/v1/places/{id}", protected(http.HandlerFunc(s.deletePlace)))
	mux.Handle("GET /api/v1/sync/status", protected(http.HandlerFunc(s.syncStatus)))

	return Chain(RequestID, DeviceID, Logger(s.logger), Recovery(s.logger))(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
