package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invitation Invitation) error
	GetByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	Delete(ctx context.Context, id snowflake.ID) error
	DeleteByTeam(ctx context.Context, teamID snowflake.ID) error
	DeleteExpired(ctx context.Context, teamID snowflake.ID, email string, now time.Time) error
	PendingExists(ctx context.Context, teamID snowflake.ID, email string, now time.Time) (bool, error)
	TokenExists(ctx context.Context, token string) (bool, error)
	ListByTeam(ctx context.Context, teamID snowflake.ID) ([]Invitation, error)
}

// Notifier delivers an invitation message. Best-effort: failures are the
// delivery subsystem's problem, never the invitation engine's.
type Notifier interface {
	SendInvite(ctx context.Context, email, link, teamName, inviterName string) error
}
