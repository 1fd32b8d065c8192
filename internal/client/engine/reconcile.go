package engine

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/placesync/internal/client/conflict"
	"github.com/dmitrijs2005/placesync/internal/client/models"
	"github.com/dmitrijs2005/placesync/internal/client/repositories/places"
	"github.com/dmitrijs2005/placesync/internal/common"
)

// reconcile merges one pulled record into the local store. Records are
// matched by id first; a remote record unknown locally is then matched by
// region inside save.
func (e *Engine) reconcile(ctx context.Context, r *models.PlaceRecord, res *Result) error {
	if err := r.Validate(); err != nil {
		// a malformed server record must not pin the cursor forever
		res.Failures = append(res.Failures, Failure{ID: r.ID, Op: "reconcile", Err: err})
		e.log.Warn(ctx, "skipping invalid remote place", "id", r.ID, "error", err)
		return nil
	}

	local, err := e.store.GetByID(ctx, r.ID)
	if errors.Is(err, common.ErrorNotFound) {
		return e.adopt(ctx, r, r.SyncVersion, 0, res)
	}
	if err != nil {
		return err
	}

	if r.SyncVersion <= local.ServerVersion {
		// nothing new on the server for this id
		return nil
	}

	if local.IsSynced {
		return e.adopt(ctx, r, max(local.SyncVersion, r.SyncVersion), local.SyncVersion, res)
	}

	if r.SyncVersion == local.SyncVersion && r.SameContent(local) {
		// an earlier push was accepted but its acknowledgement got lost
		return e.store.MarkSynced(ctx, []string{local.ID}, r.SyncVersion)
	}

	res.Conflicts++
	out := conflict.Resolve(local, r)
	rec := out.Record
	rec.ServerVersion = r.SyncVersion
	rec.IsSynced = out.Winner == conflict.Remote

	e.log.Info(ctx, "conflict resolved",
		"id", r.ID, "winner", out.Winner.String(), "rule", out.Rule, "version", rec.SyncVersion)

	if err := e.save(ctx, rec, local.SyncVersion, res); err != nil {
		return err
	}
	if rec.IsSynced {
		res.Applied++
	}
	return nil
}

// adopt stores the remote value as the acknowledged local state. expected is
// the local sync version the decision was based on, 0 for an unknown id.
func (e *Engine) adopt(ctx context.Context, r *models.PlaceRecord, version, expected int64, res *Result) error {
	rec := r.Clone()
	rec.SyncVersion = version
	rec.ServerVersion = r.SyncVersion
	rec.IsSynced = true
	if err := e.save(ctx, rec, expected, res); err != nil {
		return err
	}
	res.Applied++
	return nil
}

// save writes rec provided the stored copy is still at expected. When another
// active record already holds the region under a different id, the duplicate
// pair is resolved and the loser is kept as a pending tombstone.
//
// A user edit that landed after the read makes the write stale: it is
// skipped and the edit stays pending for the next push.
func (e *Engine) save(ctx context.Context, rec *models.PlaceRecord, expected int64, res *Result) error {
	err := e.saveIfUnchanged(ctx, rec, expected, res)
	if errors.Is(err, places.ErrStaleWrite) {
		res.Skipped++
		e.log.Info(ctx, "local edit arrived during sync, keeping it pending", "id", rec.ID, "error", err)
		return errSkipped
	}
	return err
}

func (e *Engine) saveIfUnchanged(ctx context.Context, rec *models.PlaceRecord, expected int64, res *Result) error {
	err := e.store.UpsertIfUnchanged(ctx, rec, expected)
	if !errors.Is(err, places.ErrDuplicateActive) {
		return err
	}

	other, err := e.store.FindByRegion(ctx, rec.RegionType, rec.RegionCode, places.ActiveOnly)
	if err != nil {
		return err
	}
	if other == nil || other.ID == rec.ID {
		return e.store.UpsertIfUnchanged(ctx, rec, expected)
	}

	res.Conflicts++
	canonical, loser := conflict.ResolveDuplicate(other, rec, e.now())
	e.log.Info(ctx, "duplicate region resolved",
		"region_type", rec.RegionType, "region_code", rec.RegionCode,
		"kept", canonical.ID, "removed", loser.ID)

	if canonical.ID == rec.ID {
		if err := e.store.UpsertIfUnchanged(ctx, loser, other.SyncVersion); err != nil {
			return err
		}
		return e.store.UpsertIfUnchanged(ctx, rec, expected)
	}
	return e.store.UpsertIfUnchanged(ctx, loser, expected)
}
