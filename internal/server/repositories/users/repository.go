package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/placesync/internal/server/models"
)

type Repository interface {
	// GetOrCreate returns the user with userName, creating it on first use.
	GetOrCreate(ctx context.Context, userName string) (*models.User, error)
	GetUserByLogin(ctx context.Context, userName string) (*models.User, error)
	// NextChangeSeq bumps and returns the user's change sequence. Call it in
	// the same transaction as the write it stamps.
	NextChangeSeq(ctx context.Context, userID string) (int64, error)
	// CurrentSeq is the latest change sequence, the cursor of a full pull.
	CurrentSeq(ctx context.Context, userID string) (int64, error)
	// RecordSync stamps the user with the device and time of an accepted
	// write. An empty deviceID is stored as NULL.
	RecordSync(ctx context.Context, userID, deviceID string, at time.Time) error
	SyncStatus(ctx context.Context, userID string) (*models.SyncStatus, error)
}
