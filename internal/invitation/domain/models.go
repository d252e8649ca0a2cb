// Package domain contains core types for the invitation engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TTL is the window during which an invitation may be accepted.
const TTL = time.Hour

// Invitation is a time-boxed, single-use token granting join rights to a
// specific email/team/role triple. Rows are deleted on accept or revoke
// and never mutated otherwise; expired rows linger until the pair is
// re-invited or an accept attempt discovers them. At most one row may
// exist per (team_id, email), enforced by a unique index.
type Invitation struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TeamID    snowflake.ID `gorm:"column:team_id;not null;uniqueIndex:ux_team_invitations_team_email" json:"team_id"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_team_invitations_team_email" json:"email"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	Token     string       `gorm:"type:text;not null;uniqueIndex:ux_team_invitations_token" json:"-"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null" json:"invited_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null" json:"expires_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "team_invitations" }

// IsExpired reports whether the invitation is past its expiry at now.
func (i Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
