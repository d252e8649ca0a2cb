package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateTeam(ctx context.Context, team Team) error
	GetTeam(ctx context.Context, id snowflake.ID) (*Team, error)
	UpdateTeamName(ctx context.Context, id snowflake.ID, name, slug string) error
	DeleteTeam(ctx context.Context, id snowflake.ID) error

	UpsertMember(ctx context.Context, member TeamMember) error
	RemoveMember(ctx context.Context, teamID, userID snowflake.ID) error
	RemoveAllMembers(ctx context.Context, teamID snowflake.ID) error
	GetMember(ctx context.Context, teamID, userID snowflake.ID) (*TeamMember, error)
	UpdateMemberRole(ctx context.Context, teamID, userID snowflake.ID, role string) error
	ListMembers(ctx context.Context, teamID snowflake.ID) ([]Member, error)
	ListMemberUserIDs(ctx context.Context, teamID snowflake.ID) ([]snowflake.ID, error)
	MemberEmailExists(ctx context.Context, teamID snowflake.ID, email string) (bool, error)
	IsMember(ctx context.Context, teamID, userID snowflake.ID) (bool, error)

	ListTeamsByUser(ctx context.Context, userID snowflake.ID) ([]TeamRole, error)
	ListOwnedTeams(ctx context.Context, userID snowflake.ID) ([]Team, error)

	FindIdentity(ctx context.Context, userID snowflake.ID) (*Identity, error)
	UpdateCurrentTeam(ctx context.Context, userID, teamID snowflake.ID) error
}
