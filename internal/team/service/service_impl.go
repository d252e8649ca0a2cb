package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	invitationdomain "github.com/huddlehq/huddle/internal/invitation/domain"
	"github.com/huddlehq/huddle/internal/team/domain"
	"github.com/huddlehq/huddle/internal/team/event"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	log            *zap.Logger
	db             *gorm.DB
	repo           domain.Repository
	invitationRepo invitationdomain.Repository
	publisher      event.Publisher
	genID          *snowflake.Node
}

func New(
	log *zap.Logger,
	db *gorm.DB,
	repo domain.Repository,
	invitationRepo invitationdomain.Repository,
	publisher event.Publisher,
	genID *snowflake.Node,
) domain.Service {
	return &Service{
		log:            log.Named("team.service"),
		db:             db,
		repo:           repo,
		invitationRepo: invitationRepo,
		publisher:      publisher,
		genID:          genID,
	}
}

func (s *Service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateTeamRequest) (*domain.TeamResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	if _, err := s.repo.FindIdentity(ctx, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	team := domain.Team{
		ID:          s.genID.Generate(),
		Name:        name,
		Slug:        slug.Make(name),
		OwnerUserID: userID,
		Personal:    req.Personal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.CreateTeam(ctx, team); err != nil {
			return err
		}
		if err := txRepo.UpsertMember(ctx, domain.TeamMember{
			ID:        s.genID.Generate(),
			TeamID:    team.ID,
			UserID:    userID,
			Role:      domain.RoleAdmin,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		// Creating a team makes it the creator's current team.
		if err := txRepo.UpdateCurrentTeam(ctx, userID, team.ID); err != nil {
			return err
		}
		return s.publisher.WithTx(tx).Publish(ctx, team.ID, event.TeamCreatedTopic, map[string]any{
			"name":     team.Name,
			"owner_id": team.OwnerUserID.String(),
			"personal": team.Personal,
		})
	})
	if err != nil {
		return nil, err
	}

	return toResponse(&team), nil
}

func (s *Service) UpdateName(ctx context.Context, teamID snowflake.ID, name string) (*domain.TeamResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	if err := s.repo.UpdateTeamName(ctx, teamID, name, slug.Make(name)); err != nil {
		return nil, err
	}

	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return toResponse(team), nil
}

// Delete removes the team, its roster and its pending invitations, then
// repoints every member whose current team was the deleted one.
func (s *Service) Delete(ctx context.Context, teamID snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if _, err := txRepo.GetTeam(ctx, teamID); err != nil {
			return err
		}

		memberIDs, err := txRepo.ListMemberUserIDs(ctx, teamID)
		if err != nil {
			return err
		}

		if err := s.invitationRepo.WithTx(tx).DeleteByTeam(ctx, teamID); err != nil {
			return err
		}
		if err := txRepo.RemoveAllMembers(ctx, teamID); err != nil {
			return err
		}
		if err := txRepo.DeleteTeam(ctx, teamID); err != nil {
			return err
		}

		for _, userID := range memberIDs {
			identity, err := txRepo.FindIdentity(ctx, userID)
			if err != nil {
				return err
			}
			if identity.CurrentTeamID == nil || *identity.CurrentTeamID != teamID {
				continue
			}
			if err := s.reassignCurrentTeam(ctx, txRepo, userID, teamID); err != nil {
				return err
			}
		}

		return s.publisher.WithTx(tx).Publish(ctx, teamID, event.TeamDeletedTopic, nil)
	})
	if errors.Is(err, domain.ErrNoRemainingTeam) {
		s.log.Error("member left without a team during delete",
			zap.String("team_id", teamID.String()),
			zap.Error(err),
		)
	}
	return err
}

func (s *Service) GetByID(ctx context.Context, teamID snowflake.ID) (*domain.TeamResponse, error) {
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return toResponse(team), nil
}

func (s *Service) SwitchCurrentTeam(ctx context.Context, userID, teamID snowflake.ID) error {
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if team.OwnerUserID != userID {
		isMember, err := s.repo.IsMember(ctx, teamID, userID)
		if err != nil {
			return err
		}
		if !isMember {
			return domain.ErrNotMember
		}
	}

	return s.repo.UpdateCurrentTeam(ctx, userID, teamID)
}

// RemoveMemberAndReassign detaches a member and, when the removed team was
// their current one, repoints them at their oldest remaining owned team.
func (s *Service) RemoveMemberAndReassign(ctx context.Context, teamID, userID snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if _, err := txRepo.GetTeam(ctx, teamID); err != nil {
			return err
		}
		if err := txRepo.RemoveMember(ctx, teamID, userID); err != nil {
			return err
		}

		identity, err := txRepo.FindIdentity(ctx, userID)
		if err != nil {
			return err
		}
		if identity.CurrentTeamID == nil || *identity.CurrentTeamID != teamID {
			return nil
		}
		return s.reassignCurrentTeam(ctx, txRepo, userID, teamID)
	})
	if errors.Is(err, domain.ErrNoRemainingTeam) {
		s.log.Error("removed member has no owned team to fall back to",
			zap.String("team_id", teamID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
	return err
}

func (s *Service) SetMemberRole(ctx context.Context, teamID, userID snowflake.ID, role string) error {
	if !domain.ValidRole(role) {
		return domain.ErrInvalidRole
	}
	if _, err := s.repo.GetTeam(ctx, teamID); err != nil {
		return err
	}
	return s.repo.UpdateMemberRole(ctx, teamID, userID, role)
}

func (s *Service) ListMembers(ctx context.Context, teamID snowflake.ID) ([]domain.Member, error) {
	if _, err := s.repo.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, teamID)
}

// RolesForUser returns the user's team directory: every team they own or
// belong to, one entry per team. Ownership wins on overlap and always
// reads as admin.
func (s *Service) RolesForUser(ctx context.Context, userID snowflake.ID) ([]domain.TeamRole, error) {
	owned, err := s.repo.ListOwnedTeams(ctx, userID)
	if err != nil {
		return nil, err
	}
	edges, err := s.repo.ListTeamsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[snowflake.ID]struct{}, len(owned))
	directory := make([]domain.TeamRole, 0, len(owned)+len(edges))
	for _, team := range owned {
		seen[team.ID] = struct{}{}
		directory = append(directory, domain.TeamRole{
			TeamID:    team.ID,
			Name:      team.Name,
			Role:      domain.RoleAdmin,
			IsOwner:   true,
			Personal:  team.Personal,
			CreatedAt: team.CreatedAt,
		})
	}
	for _, edge := range edges {
		if _, ok := seen[edge.TeamID]; ok {
			continue
		}
		directory = append(directory, edge)
	}

	sort.Slice(directory, func(i, j int) bool {
		return directory[i].CreatedAt.Before(directory[j].CreatedAt)
	})
	return directory, nil
}

// EnsurePersonalTeam guarantees the user owns a personal team, creating
// one when absent. The personal team becomes the current team when none
// is set.
func (s *Service) EnsurePersonalTeam(ctx context.Context, userID snowflake.ID) (*domain.TeamResponse, error) {
	identity, err := s.repo.FindIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}

	owned, err := s.repo.ListOwnedTeams(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, team := range owned {
		if team.Personal {
			if identity.CurrentTeamID == nil {
				if err := s.repo.UpdateCurrentTeam(ctx, userID, team.ID); err != nil {
					return nil, err
				}
			}
			return toResponse(&team), nil
		}
	}

	return s.Create(ctx, userID, domain.CreateTeamRequest{
		Name:     PersonalTeamName(identity.Name),
		Personal: true,
	})
}

func (s *Service) reassignCurrentTeam(ctx context.Context, repo domain.Repository, userID, excluded snowflake.ID) error {
	owned, err := repo.ListOwnedTeams(ctx, userID)
	if err != nil {
		return err
	}
	for _, team := range owned {
		if team.ID == excluded {
			continue
		}
		return repo.UpdateCurrentTeam(ctx, userID, team.ID)
	}
	return domain.ErrNoRemainingTeam
}

// PersonalTeamName derives the default personal team name from a display
// name.
func PersonalTeamName(displayName string) string {
	first := strings.TrimSpace(displayName)
	if i := strings.IndexByte(first, ' '); i > 0 {
		first = first[:i]
	}
	if first == "" {
		first = "Personal"
	}
	return first + "'s Team"
}

func toResponse(team *domain.Team) *domain.TeamResponse {
	return &domain.TeamResponse{
		ID:       team.ID.String(),
		Name:     team.Name,
		Slug:     team.Slug,
		OwnerID:  team.OwnerUserID.String(),
		Personal: team.Personal,
	}
}
