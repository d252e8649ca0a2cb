package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/huddlehq/huddle/internal/invitation/domain"
	"gorm.io/gorm"
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

func (r *repository) Create(ctx context.Context, invitation domain.Invitation) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO team_invitations (id, team_id, email, role, token, invited_by, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		invitation.ID,
		invitation.TeamID,
		invitation.Email,
		invitation.Role,
		invitation.Token,
		invitation.InvitedBy,
		invitation.CreatedAt,
		invitation.ExpiresAt,
	).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).First(&invitation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).First(&invitation, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	tx := r.db.WithContext(ctx).Exec(`DELETE FROM team_invitations WHERE id = ?`, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrInvitationNotFound
	}
	return nil
}

func (r *repository) DeleteByTeam(ctx context.Context, teamID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM team_invitations WHERE team_id = ?`,
		teamID,
	).Error
}

func (r *repository) DeleteExpired(ctx context.Context, teamID snowflake.ID, email string, now time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM team_invitations WHERE team_id = ? AND email = ? AND expires_at <= ?`,
		teamID, email, now,
	).Error
}

func (r *repository) PendingExists(ctx context.Context, teamID snowflake.ID, email string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM team_invitations WHERE team_id = ? AND email = ? AND expires_at > ?`,
		teamID, email, now,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) TokenExists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM team_invitations WHERE token = ?`,
		token,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByTeam(ctx context.Context, teamID snowflake.ID) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}
