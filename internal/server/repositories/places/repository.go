package places

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/placesync/internal/server/models"
)

// ErrForeignID is returned by Upsert when the id already belongs to another user.
var ErrForeignID = errors.New("place id belongs to another user")

type Repository interface {
	// ListChangedSince returns the user's places with change_seq > since,
	// tombstones included, oldest change first.
	ListChangedSince(ctx context.Context, userID string, since int64) ([]*models.Place, error)
	// Get returns common.ErrorNotFound for ids the user does not own.
	Get(ctx context.Context, userID, id string) (*models.Place, error)
	// GetForUpdate is Get with a row lock; call it inside a transaction.
	GetForUpdate(ctx context.Context, userID, id string) (*models.Place, error)
	Upsert(ctx context.Context, p *models.Place) error
}
