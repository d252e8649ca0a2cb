// Package domain contains persistence models for the team service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Team represents a tenant. Ownership is a first-class attribute; the
// owner's effective role is always admin regardless of membership edges.
type Team struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Slug        string       `gorm:"type:text;not null" json:"slug"`
	OwnerUserID snowflake.ID `gorm:"column:owner_user_id;not null;index" json:"owner_user_id"`
	Personal    bool         `gorm:"column:personal" json:"personal"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Team) TableName() string { return "teams" }

// TeamMember represents membership of a user in a team. Unique per
// (team_id, user_id) pair.
type TeamMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TeamID    snowflake.ID `gorm:"column:team_id;not null;uniqueIndex:ux_team_members_team_user,priority:1" json:"team_id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index;uniqueIndex:ux_team_members_team_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (TeamMember) TableName() string { return "team_members" }

// Identity is the slice of a user record the team service operates on.
// Identity storage itself belongs to the auth service.
type Identity struct {
	ID            snowflake.ID  `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	CurrentTeamID *snowflake.ID `json:"current_team_id"`
}

// Member is a membership edge joined with identity display fields.
type Member struct {
	UserID   snowflake.ID `json:"user_id"`
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Role     string       `json:"role"`
	JoinedAt time.Time    `json:"joined_at"`
}

// TeamRole is one entry of a user's team directory.
type TeamRole struct {
	TeamID    snowflake.ID `json:"team_id"`
	Name      string       `json:"name"`
	Role      string       `json:"role"`
	IsOwner   bool         `json:"is_owner"`
	Personal  bool         `json:"personal"`
	CreatedAt time.Time    `json:"created_at"`
}
