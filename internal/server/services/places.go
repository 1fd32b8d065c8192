// Package services holds the server's business rules on top of the
// repositories.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/dmitrijs2005/placesync/internal/dbx"
	"github.com/dmitrijs2005/placesync/internal/server/models"
	"github.com/dmitrijs2005/placesync/internal/server/repositories/repomanager"
)

// ConflictError rejects a write against a newer, or equally versioned but
// different, stored place.
type ConflictError struct {
	Current *models.Place
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: server has version %d", e.Current.Version)
}

func (e *ConflictError) Is(target error) bool { return target == common.ErrVersionConflict }

type deviceIDKey struct{}

// WithDeviceID attaches the id of the writing client install to ctx.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey{}, deviceID)
}

func DeviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDKey{}).(string)
	return id
}

type PlaceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewPlaceService(db *sql.DB, repomanager repomanager.RepositoryManager) *PlaceService {
	return &PlaceService{db: db, repomanager: repomanager, now: time.Now}
}

// List returns the user's places changed after since and the cursor for the
// next call. Both come from one snapshot so no write falls between them.
func (s *PlaceService) List(ctx context.Context, userID string, since int64) ([]*models.Place, int64, error) {
	var (
		result []*models.Place
		cursor int64
	)

	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := dbx.WithTx(ctx, s.db, opts, func(ctx context.Context, tx dbx.DBTX) error {
		seq, err := s.repomanager.Users(tx).CurrentSeq(ctx, userID)
		if err != nil {
			return err
		}
		items, err := s.repomanager.Places(tx).ListChangedSince(ctx, userID, since)
		if err != nil {
			return err
		}
		result, cursor = items, seq
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return result, cursor, nil
}

func (s *PlaceService) Get(ctx context.Context, userID, id string) (*models.Place, error) {
	return s.repomanager.Places(s.db).Get(ctx, userID, id)
}

// Put stores p unless the stored copy is newer or differs at the same
// version. Replaying an already stored write is accepted without a new
// change sequence.
func (s *PlaceService) Put(ctx context.Context, userID string, p *models.Place) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		placeRepo := s.repomanager.Places(tx)

		stored, err := placeRepo.GetForUpdate(ctx, userID, p.ID)
		switch {
		case errors.Is(err, common.ErrorNotFound):
		case err != nil:
			return err
		case stored.Version > p.Version, stored.Version == p.Version && !stored.SameContent(p):
			return &ConflictError{Current: stored}
		case stored.Version == p.Version:
			return nil
		}

		return s.write(ctx, tx, userID, p)
	})
	if err != nil {
		return 0, err
	}
	return p.Version, nil
}

// Delete tombstones the place at version. modifiedAt is the client's delete
// time; a zero value falls back to the server clock. An unknown id is
// common.ErrorNotFound.
func (s *PlaceService) Delete(ctx context.Context, userID, id string, version int64, modifiedAt time.Time) (int64, error) {
	if version < 1 {
		return 0, fmt.Errorf("%w: version must be positive", common.ErrInvalidRecord)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		stored, err := s.repomanager.Places(tx).GetForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}

		switch {
		case stored.Version > version, stored.Version == version && !stored.IsDeleted:
			return &ConflictError{Current: stored}
		case stored.Version == version:
			return nil
		}

		if modifiedAt.IsZero() {
			modifiedAt = s.now()
		}
		stored.IsDeleted = true
		stored.Version = version
		stored.LastModifiedAt = modifiedAt.UTC()
		return s.write(ctx, tx, userID, stored)
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Status reports the user's cursor and which device wrote last.
func (s *PlaceService) Status(ctx context.Context, userID string) (*models.SyncStatus, error) {
	return s.repomanager.Users(s.db).SyncStatus(ctx, userID)
}

// write stamps p with the next change sequence, stores it and records the
// writing device, all inside tx.
func (s *PlaceService) write(ctx context.Context, tx dbx.DBTX, userID string, p *models.Place) error {
	userRepo := s.repomanager.Users(tx)

	seq, err := userRepo.NextChangeSeq(ctx, userID)
	if err != nil {
		return err
	}
	p.UserID = userID
	p.ChangeSeq = seq
	if err := s.repomanager.Places(tx).Upsert(ctx, p); err != nil {
		return err
	}
	return userRepo.RecordSync(ctx, userID, DeviceIDFromContext(ctx), s.now())
}
