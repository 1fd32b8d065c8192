package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/placesync/internal/client/client"
	"github.com/dmitrijs2005/placesync/internal/client/conflict"
	"github.com/dmitrijs2005/placesync/internal/client/models"
)

func (e *Engine) push(ctx context.Context, p *models.PlaceRecord, res *Result) error {
	accepted, err := e.send(ctx, p)

	var ce *client.ConflictError
	if errors.As(err, &ce) {
		res.Conflicts++
		return e.resolvePushConflict(ctx, p, ce, res)
	}
	if err != nil {
		return err
	}
	return e.ack(ctx, p, accepted, res)
}

// send pushes a tombstone as a delete and anything else as an upsert. A
// delete of an id the server never had counts as accepted.
func (e *Engine) send(ctx context.Context, p *models.PlaceRecord) (int64, error) {
	if p.IsDeleted {
		v, err := e.remote.DeletePlace(ctx, p.ID, p.SyncVersion, p.LastModifiedAt)
		if errors.Is(err, client.ErrNotFound) {
			return p.SyncVersion, nil
		}
		return v, err
	}
	return e.remote.CreateOrUpdatePlace(ctx, p)
}

func (e *Engine) ack(ctx context.Context, p *models.PlaceRecord, accepted int64, res *Result) error {
	if err := e.store.MarkSynced(ctx, []string{p.ID}, accepted); err != nil {
		return err
	}
	res.Pushed++
	return nil
}

// resolvePushConflict treats a rejected push as a missed pull: resolve
// against the server's copy and, when the local value still wins, push the
// result once more.
func (e *Engine) resolvePushConflict(ctx context.Context, p *models.PlaceRecord, ce *client.ConflictError, res *Result) error {
	server := ce.ServerRecord
	if server == nil {
		fresh, err := e.remote.GetPlace(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("refetch after conflict: %w", err)
		}
		server = fresh
	}

	out := conflict.Resolve(p, server)
	rec := out.Record
	rec.ServerVersion = server.SyncVersion

	e.log.Info(ctx, "push conflict resolved",
		"id", p.ID, "winner", out.Winner.String(), "rule", out.Rule, "version", rec.SyncVersion)

	if out.Winner == conflict.Remote {
		rec.IsSynced = true
		if err := e.save(ctx, rec, p.SyncVersion, res); err != nil {
			return err
		}
		res.Applied++
		return nil
	}

	rec.IsSynced = false
	if err := e.save(ctx, rec, p.SyncVersion, res); err != nil {
		// a skipped save means a newer edit is pending for a later pass
		return err
	}

	accepted, err := e.send(ctx, rec)
	if errors.As(err, &ce) {
		return fmt.Errorf("retry after conflict: %w", err)
	}
	if err != nil {
		return err
	}
	return e.ack(ctx, rec, accepted, res)
}
