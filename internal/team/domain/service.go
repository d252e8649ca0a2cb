package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ValidRole reports whether role is one of the two enumerated values.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateTeamRequest) (*TeamResponse, error)
	UpdateName(ctx context.Context, teamID snowflake.ID, name string) (*TeamResponse, error)
	Delete(ctx context.Context, teamID snowflake.ID) error
	GetByID(ctx context.Context, teamID snowflake.ID) (*TeamResponse, error)
	SwitchCurrentTeam(ctx context.Context, userID, teamID snowflake.ID) error
	RemoveMemberAndReassign(ctx context.Context, teamID, userID snowflake.ID) error
	SetMemberRole(ctx context.Context, teamID, userID snowflake.ID, role string) error
	ListMembers(ctx context.Context, teamID snowflake.ID) ([]Member, error)
	RolesForUser(ctx context.Context, userID snowflake.ID) ([]TeamRole, error)
	EnsurePersonalTeam(ctx context.Context, userID snowflake.ID) (*TeamResponse, error)
}

type CreateTeamRequest struct {
	Name     string
	Personal bool
}

type TeamResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	OwnerID  string `json:"owner_id"`
	Personal bool   `json:"personal"`
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrInvalidUser     = errors.New("invalid_user")
	ErrTeamNotFound    = errors.New("team not found")
	ErrNotMember       = errors.New("user does not belong to team")
	ErrNoRemainingTeam = errors.New("no remaining team for user")
	ErrForbidden       = errors.New("forbidden")
)
