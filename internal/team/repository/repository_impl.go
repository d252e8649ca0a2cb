package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/huddlehq/huddle/internal/team/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateTeam(ctx context.Context, team domain.Team) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO teams (id, name, slug, owner_user_id, personal, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		team.ID,
		team.Name,
		team.Slug,
		team.OwnerUserID,
		team.Personal,
		team.CreatedAt,
		team.CreatedAt,
	).Error
}

func (r *repository) GetTeam(ctx context.Context, id snowflake.ID) (*domain.Team, error) {
	var team domain.Team
	err := r.db.WithContext(ctx).First(&team, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *repository) UpdateTeamName(ctx context.Context, id snowflake.ID, name, slug string) error {
	tx := r.db.WithContext(ctx).Exec(
		`UPDATE teams SET name = ?, slug = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, slug, id,
	)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

func (r *repository) DeleteTeam(ctx context.Context, id snowflake.ID) error {
	tx := r.db.WithContext(ctx).Exec(`DELETE FROM teams WHERE id = ?`, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

// UpsertMember inserts the edge or, when the pair already exists, updates
// the role. Last write wins.
func (r *repository) UpsertMember(ctx context.Context, member domain.TeamMember) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"role": member.Role}),
	}).Create(&member).Error
}

func (r *repository) RemoveMember(ctx context.Context, teamID, userID snowflake.ID) error {
	tx := r.db.WithContext(ctx).Exec(
		`DELETE FROM team_members WHERE team_id = ? AND user_id = ?`,
		teamID, userID,
	)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (r *repository) RemoveAllMembers(ctx context.Context, teamID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM team_members WHERE team_id = ?`,
		teamID,
	).Error
}

func (r *repository) GetMember(ctx context.Context, teamID, userID snowflake.ID) (*domain.TeamMember, error) {
	var member domain.TeamMember
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) UpdateMemberRole(ctx context.Context, teamID, userID snowflake.ID, role string) error {
	tx := r.db.WithContext(ctx).Exec(
		`UPDATE team_members SET role = ? WHERE team_id = ? AND user_id = ?`,
		role, teamID, userID,
	)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (r *repository) ListMembers(ctx context.Context, teamID snowflake.ID) ([]domain.Member, error) {
	var members []domain.Member
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.user_id, u.name, u.email, m.role, m.created_at AS joined_at
		 FROM team_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.team_id = ?
		 ORDER BY m.created_at ASC`,
		teamID,
	).Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) ListMemberUserIDs(ctx context.Context, teamID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT user_id FROM team_members WHERE team_id = ?`,
		teamID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) MemberEmailExists(ctx context.Context, teamID snowflake.ID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM team_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.team_id = ? AND u.email = ?`,
		teamID, email,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) IsMember(ctx context.Context, teamID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM team_members WHERE team_id = ? AND user_id = ?`,
		teamID, userID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListTeamsByUser(ctx context.Context, userID snowflake.ID) ([]domain.TeamRole, error) {
	var items []domain.TeamRole
	err := r.db.WithContext(ctx).Raw(
		`SELECT t.id AS team_id, t.name, m.role, t.personal, t.created_at
		 FROM teams t
		 JOIN team_members m ON m.team_id = t.id
		 WHERE m.user_id = ?
		 ORDER BY t.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListOwnedTeams(ctx context.Context, userID snowflake.ID) ([]domain.Team, error) {
	var teams []domain.Team
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", userID).
		Order("created_at ASC").
		Find(&teams).Error
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *repository) FindIdentity(ctx context.Context, userID snowflake.ID) (*domain.Identity, error) {
	var identity domain.Identity
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, email, current_team_id FROM users WHERE id = ?`,
		userID,
	).Scan(&identity).Error
	if err != nil {
		return nil, err
	}
	if identity.ID == 0 {
		return nil, domain.ErrInvalidUser
	}
	return &identity, nil
}

func (r *repository) UpdateCurrentTeam(ctx context.Context, userID, teamID snowflake.ID) error {
	tx := r.db.WithContext(ctx).Exec(
		`UPDATE users SET current_team_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		teamID, userID,
	)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrInvalidUser
	}
	return nil
}
