// Package repomanager hands out repositories bound to a *sql.DB or a *sql.Tx,
// so services can run several repositories inside one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/placesync/internal/dbx"
	"github.com/dmitrijs2005/placesync/internal/server/repositories/places"
	"github.com/dmitrijs2005/placesync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Places(db dbx.DBTX) places.Repository
}
