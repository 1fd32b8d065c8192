package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/dmitrijs2005/placesync/internal/dbx"
	"github.com/dmitrijs2005/placesync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetOrCreate(ctx context.Context, userName string) (*models.User, error) {

	query :=
		`INSERT INTO users (username)
		 VALUES ($1)
		 ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		 RETURNING id, username, current_seq
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, userName).Scan(&user.ID, &user.UserName, &user.CurrentSeq)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT id, username, current_seq FROM users
		 WHERE username = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, userName).Scan(&user.ID, &user.UserName, &user.CurrentSeq)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) NextChangeSeq(ctx context.Context, userID string) (int64, error) {
	query :=
		`UPDATE users SET current_seq = current_seq + 1
		 WHERE id = $1
		 RETURNING current_seq
		 `

	var seq int64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&seq)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return seq, nil
}

func (r *PostgresRepository) CurrentSeq(ctx context.Context, userID string) (int64, error) {
	query :=
		`SELECT current_seq FROM users
		 WHERE id = $1
		 `

	var seq int64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&seq)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return seq, nil
}

func (r *PostgresRepository) RecordSync(ctx context.Context, userID, deviceID string, at time.Time) error {
	query :=
		`UPDATE users SET last_sync_at = $2, last_sync_device = NULLIF($3, '')
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, userID, at.UTC(), deviceID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if err := dbx.ExpectRows(res, 1); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SyncStatus(ctx context.Context, userID string) (*models.SyncStatus, error) {
	query :=
		`SELECT current_seq, last_sync_at, last_sync_device FROM users
		 WHERE id = $1
		 `

	var (
		st     models.SyncStatus
		at     sql.NullTime
		device sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&st.CurrentSeq, &at, &device)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if at.Valid {
		t := at.Time.UTC()
		st.LastSyncAt = &t
	}
	st.LastSyncDevice = device.String

	return &st, nil
}
