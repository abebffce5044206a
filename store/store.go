// Package store is the persistence boundary. Handlers and services depend on
// these interfaces; the gorm-backed implementation lives alongside so tests can
// swap in fakes without a database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ringsight/ringsight/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// OAuthToken is the credential set persisted per connected account.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Users persists one OAuth token set per external identity.
type Users interface {
	// UpsertIdentity inserts a new user row or, when ouraUserID already
	// exists, overwrites the token fields. Last writer wins.
	UpsertIdentity(ctx context.Context, ouraUserID, email string, tok OAuthToken) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// SaveToken persists a refreshed token set for an existing user.
	SaveToken(ctx context.Context, id uint, tok OAuthToken) error
}

// Metrics persists the three daily summary variants, replace-by-(user, day).
type Metrics interface {
	UpsertSleep(ctx context.Context, rec *models.DailySleep) error
	UpsertActivity(ctx context.Context, rec *models.DailyActivity) error
	UpsertReadiness(ctx context.Context, rec *models.DailyReadiness) error

	// List methods return rows with day >= sinceDay, most recent first.
	// A limit of 0 means no cap.
	ListSleep(ctx context.Context, userID uint, sinceDay string, limit int) ([]models.DailySleep, error)
	ListActivity(ctx context.Context, userID uint, sinceDay string, limit int) ([]models.DailyActivity, error)
	ListReadiness(ctx context.Context, userID uint, sinceDay string, limit int) ([]models.DailyReadiness, error)
}

// Chats is the append-only conversation log.
type Chats interface {
	Append(ctx context.Context, userID uint, role, content string) error
	// Recent returns up to limit turns, most recent first.
	Recent(ctx context.Context, userID uint, limit int) ([]models.ChatMessage, error)
}
