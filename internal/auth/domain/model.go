// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User represents a system user account. CurrentTeamID must always point
// at a team the user belongs to once their first team exists; the team
// service owns that invariant.
type User struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	Name            string            `gorm:"type:text;not null"`
	Email           string            `gorm:"type:text;not null;uniqueIndex:ux_users_email"`
	PasswordHash    *string           `gorm:"type:text"`
	EmailVerifiedAt *time.Time        `gorm:"column:email_verified_at"`
	CurrentTeamID   *snowflake.ID     `gorm:"column:current_team_id"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
