package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	teamdomain "github.com/huddlehq/huddle/internal/team/domain"
)

type Service interface {
	Invite(ctx context.Context, inviterID, teamID snowflake.ID, req InviteRequest) (*InvitationView, error)
	Resolve(ctx context.Context, token string) (*InvitationView, error)
	Accept(ctx context.Context, userID snowflake.ID, token string) (*teamdomain.TeamMember, error)
	RegisterAndAccept(ctx context.Context, token string, req RegisterRequest) (*RegisterResult, error)
	Revoke(ctx context.Context, teamID, invitationID snowflake.ID) error
	ListByTeam(ctx context.Context, teamID snowflake.ID) ([]InvitationView, error)
}

type InviteRequest struct {
	Email string
	Role  string
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

type RegisterResult struct {
	UserID     snowflake.ID
	Membership *teamdomain.TeamMember
}

// InvitationView is the invitation as exposed to callers. The raw token
// travels only through the accept link.
type InvitationView struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	TeamName  string    `json:"team_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	InvitedBy string    `json:"invited_by"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
}

var (
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrSelfInvitation      = errors.New("cannot invite yourself")
	ErrAlreadyMember       = errors.New("user is already a member")
	ErrDuplicateInvitation = errors.New("user has already been invited")
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrInvitationExpired   = errors.New("invitation has expired")
	ErrEmailMismatch       = errors.New("invitation was sent to a different email address")
)
