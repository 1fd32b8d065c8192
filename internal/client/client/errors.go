package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/placesync/internal/client/models"
	"github.com/dmitrijs2005/placesync/internal/common"
)

var (
	// ErrUnavailable covers transport failures, timeouts and 5xx answers.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized means the credentials were rejected; retrying will not help.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("place not found on server")
)

// ConflictError is returned when the server holds a newer version of the
// record than the one pushed.
type ConflictError struct {
	ServerVersion int64
	ServerRecord  *models.PlaceRecord
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: server has version %d", e.ServerVersion)
}

func (e *ConflictError) Is(target error) bool { return target == common.ErrVersionConflict }
