package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/dmitrijs2005/placesync/internal/server/auth"
	"github.com/dmitrijs2005/placesync/internal/server/config"
	"github.com/dmitrijs2005/placesync/internal/server/repositories/repomanager"
)

// UserService issues and verifies access tokens. Account management beyond
// get-or-create by name is handled outside this server.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// IssueToken returns an access token for userName, creating the user on
// first use.
func (s *UserService) IssueToken(ctx context.Context, userName string) (string, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return "", fmt.Errorf("empty user name")
	}

	user, err := s.repomanager.Users(s.db).GetOrCreate(ctx, userName)
	if err != nil {
		return "", fmt.Errorf("error getting user: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	return token, nil
}

// Authenticate maps a bearer token to its user id. Any token problem is
// reported as common.ErrorUnauthorized wrapping the cause.
func (s *UserService) Authenticate(ctx context.Context, token string) (string, error) {
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	return userID, nil
}
