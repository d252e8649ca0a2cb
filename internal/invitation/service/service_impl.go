package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	authdomain "github.com/huddlehq/huddle/internal/auth/domain"
	"github.com/huddlehq/huddle/internal/auth/password"
	authservice "github.com/huddlehq/huddle/internal/auth/service"
	"github.com/huddlehq/huddle/internal/clock"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/invitation/domain"
	"github.com/huddlehq/huddle/internal/invitation/token"
	"github.com/huddlehq/huddle/internal/observability/metrics"
	teamdomain "github.com/huddlehq/huddle/internal/team/domain"
	"github.com/huddlehq/huddle/internal/team/event"
	teamservice "github.com/huddlehq/huddle/internal/team/service"
	"github.com/huddlehq/huddle/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// tokenAttempts bounds the collision retry loop on insert. The token
	// space makes a second attempt already vanishingly unlikely.
	tokenAttempts = 3

	notifyTimeout = 10 * time.Second

	minPasswordLength = 8
)

type Service struct {
	log       *zap.Logger
	conn      *gorm.DB
	cfg       config.Config
	repo      domain.Repository
	teamRepo  teamdomain.Repository
	userRepo  authdomain.Repository
	publisher event.Publisher
	notifier  domain.Notifier
	clock     clock.Clock
	genID     *snowflake.Node
	metrics   *metrics.InvitationMetrics
}

func New(
	log *zap.Logger,
	conn *gorm.DB,
	cfg config.Config,
	repo domain.Repository,
	teamRepo teamdomain.Repository,
	userRepo authdomain.Repository,
	publisher event.Publisher,
	notifier domain.Notifier,
	clk clock.Clock,
	genID *snowflake.Node,
) domain.Service {
	return &Service{
		log:       log.Named("invitation.service"),
		conn:      conn,
		cfg:       cfg,
		repo:      repo,
		teamRepo:  teamRepo,
		userRepo:  userRepo,
		publisher: publisher,
		notifier:  notifier,
		clock:     clk,
		genID:     genID,
		metrics: metrics.InvitationWithConfig(metrics.Config{
			ServiceName: cfg.AppName,
			Environment: cfg.Environment,
		}),
	}
}

// Invite issues a time-boxed invitation for an email address to join a
// team. Validation order: address shape, self-invite, existing member,
// pending duplicate.
func (s *Service) Invite(ctx context.Context, inviterID, teamID snowflake.ID, req domain.InviteRequest) (*domain.InvitationView, error) {
	email, err := authservice.NormalizeEmail(req.Email)
	if err != nil {
		s.metrics.RecordRejected(metrics.RejectReasonInvalidEmail)
		return nil, domain.ErrInvalidEmail
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = teamdomain.RoleMember
	}
	if !teamdomain.ValidRole(role) {
		return nil, teamdomain.ErrInvalidRole
	}

	team, err := s.teamRepo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	inviter, err := s.teamRepo.FindIdentity(ctx, inviterID)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(inviter.Email, email) {
		s.metrics.RecordRejected(metrics.RejectReasonSelfInvite)
		return nil, domain.ErrSelfInvitation
	}

	now := s.clock.Now()
	var invitation domain.Invitation
	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txTeamRepo := s.teamRepo.WithTx(tx)

		isMember, err := txTeamRepo.MemberEmailExists(ctx, teamID, email)
		if err != nil {
			return err
		}
		if isMember {
			return domain.ErrAlreadyMember
		}

		pending, err := txRepo.PendingExists(ctx, teamID, email, now)
		if err != nil {
			return err
		}
		if pending {
			return domain.ErrDuplicateInvitation
		}

		// An expired leftover row would trip the unique
		// (team_id, email) index on insert.
		if err := txRepo.DeleteExpired(ctx, teamID, email, now); err != nil {
			return err
		}

		raw, err := s.newToken(ctx, txRepo)
		if err != nil {
			return err
		}

		invitation = domain.Invitation{
			ID:        s.genID.Generate(),
			TeamID:    teamID,
			Email:     email,
			Role:      role,
			Token:     raw,
			InvitedBy: inviterID,
			CreatedAt: now,
			ExpiresAt: now.Add(domain.TTL),
		}
		if err := txRepo.Create(ctx, invitation); err != nil {
			return err
		}

		return s.publisher.WithTx(tx).Publish(ctx, teamID, event.InvitationCreatedTopic, map[string]any{
			"invitation_id": invitation.ID.String(),
			"email":         invitation.Email,
			"role":          invitation.Role,
			"invited_by":    inviterID.String(),
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.metrics.RecordRejected(metrics.RejectReasonDuplicate)
			return nil, domain.ErrDuplicateInvitation
		}
		switch {
		case errors.Is(err, domain.ErrAlreadyMember):
			s.metrics.RecordRejected(metrics.RejectReasonMember)
		case errors.Is(err, domain.ErrDuplicateInvitation):
			s.metrics.RecordRejected(metrics.RejectReasonDuplicate)
		}
		return nil, err
	}

	s.metrics.RecordCreated(role)

	// Delivery is best-effort and must never undo the committed row.
	go s.notify(invitation, team.Name, inviter.Name)

	view := s.view(invitation, team.Name, inviter.Name, now)
	return &view, nil
}

func (s *Service) Resolve(ctx context.Context, rawToken string) (*domain.InvitationView, error) {
	invitation, err := s.repo.GetByToken(ctx, strings.TrimSpace(rawToken))
	if err != nil {
		return nil, err
	}

	team, err := s.teamRepo.GetTeam(ctx, invitation.TeamID)
	if err != nil {
		return nil, err
	}

	inviterName := ""
	if inviter, err := s.teamRepo.FindIdentity(ctx, invitation.InvitedBy); err == nil {
		inviterName = inviter.Name
	}

	view := s.view(*invitation, team.Name, inviterName, s.clock.Now())
	return &view, nil
}

// Accept redeems an invitation for an existing signed-in user. The member
// edge is written and the invitation consumed in one transaction; the
// user's current team is left untouched.
func (s *Service) Accept(ctx context.Context, userID snowflake.ID, rawToken string) (*teamdomain.TeamMember, error) {
	invitation, err := s.repo.GetByToken(ctx, strings.TrimSpace(rawToken))
	if err != nil {
		s.metrics.RecordRejected(metrics.RejectReasonNotFound)
		return nil, err
	}
	if invitation.IsExpired(s.clock.Now()) {
		s.metrics.RecordRejected(metrics.RejectReasonExpired)
		return nil, domain.ErrInvitationExpired
	}

	identity, err := s.teamRepo.FindIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(identity.Email, invitation.Email) {
		s.metrics.RecordRejected(metrics.RejectReasonMismatch)
		return nil, domain.ErrEmailMismatch
	}

	member := teamdomain.TeamMember{
		ID:        s.genID.Generate(),
		TeamID:    invitation.TeamID,
		UserID:    userID,
		Role:      invitation.Role,
		CreatedAt: s.clock.Now(),
	}
	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.teamRepo.WithTx(tx).UpsertMember(ctx, member); err != nil {
			return err
		}
		// Single use: losing a concurrent redeem race surfaces as not found.
		if err := s.repo.WithTx(tx).Delete(ctx, invitation.ID); err != nil {
			return err
		}
		return s.publisher.WithTx(tx).Publish(ctx, invitation.TeamID, event.InvitationAcceptedTopic, map[string]any{
			"invitation_id": invitation.ID.String(),
			"user_id":       userID.String(),
			"role":          invitation.Role,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAccepted(metrics.AcceptFlowExisting)
	return &member, nil
}

// RegisterAndAccept creates a pre-verified account from the invitation and
// joins the inviting team, all in one transaction: identity, personal
// team, membership edge, invitation consumption. The invited team ends up
// as the new user's current team.
func (s *Service) RegisterAndAccept(ctx context.Context, rawToken string, req domain.RegisterRequest) (*domain.RegisterResult, error) {
	invitation, err := s.repo.GetByToken(ctx, strings.TrimSpace(rawToken))
	if err != nil {
		s.metrics.RecordRejected(metrics.RejectReasonNotFound)
		return nil, err
	}
	if invitation.IsExpired(s.clock.Now()) {
		s.metrics.RecordRejected(metrics.RejectReasonExpired)
		return nil, domain.ErrInvitationExpired
	}

	email, err := authservice.NormalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if !strings.EqualFold(email, invitation.Email) {
		s.metrics.RecordRejected(metrics.RejectReasonMismatch)
		return nil, domain.ErrEmailMismatch
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, authdomain.ErrInvalidCredentials
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	verifiedAt := now
	user := &authdomain.User{
		ID:              s.genID.Generate(),
		Name:            name,
		Email:           email,
		PasswordHash:    &hashed,
		EmailVerifiedAt: &verifiedAt,
	}
	member := teamdomain.TeamMember{
		ID:        s.genID.Generate(),
		TeamID:    invitation.TeamID,
		UserID:    user.ID,
		Role:      invitation.Role,
		CreatedAt: now,
	}

	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txUserRepo := s.userRepo.WithTx(tx)
		txTeamRepo := s.teamRepo.WithTx(tx)

		if _, err := txUserRepo.FindByEmail(ctx, email); err == nil {
			return authdomain.ErrEmailTaken
		} else if !errors.Is(err, authdomain.ErrUserNotFound) {
			return err
		}

		if err := txUserRepo.Create(ctx, user); err != nil {
			return err
		}

		// The account guarantee: every user owns a personal team.
		personal := teamdomain.Team{
			ID:          s.genID.Generate(),
			Name:        teamservice.PersonalTeamName(name),
			OwnerUserID: user.ID,
			Personal:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		personal.Slug = slug.Make(personal.Name)
		if err := txTeamRepo.CreateTeam(ctx, personal); err != nil {
			return err
		}
		if err := txTeamRepo.UpsertMember(ctx, teamdomain.TeamMember{
			ID:        s.genID.Generate(),
			TeamID:    personal.ID,
			UserID:    user.ID,
			Role:      teamdomain.RoleAdmin,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := txTeamRepo.UpsertMember(ctx, member); err != nil {
			return err
		}
		if err := txTeamRepo.UpdateCurrentTeam(ctx, user.ID, invitation.TeamID); err != nil {
			return err
		}

		if err := s.repo.WithTx(tx).Delete(ctx, invitation.ID); err != nil {
			return err
		}
		return s.publisher.WithTx(tx).Publish(ctx, invitation.TeamID, event.InvitationAcceptedTopic, map[string]any{
			"invitation_id": invitation.ID.String(),
			"user_id":       user.ID.String(),
			"role":          invitation.Role,
			"registered":    true,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAccepted(metrics.AcceptFlowRegister)
	return &domain.RegisterResult{
		UserID:     user.ID,
		Membership: &member,
	}, nil
}

func (s *Service) Revoke(ctx context.Context, teamID, invitationID snowflake.ID) error {
	invitation, err := s.repo.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if invitation.TeamID != teamID {
		return domain.ErrInvitationNotFound
	}

	if err := s.repo.Delete(ctx, invitationID); err != nil {
		return err
	}
	s.metrics.RecordRevoked()
	return nil
}

func (s *Service) ListByTeam(ctx context.Context, teamID snowflake.ID) ([]domain.InvitationView, error) {
	team, err := s.teamRepo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	invitations, err := s.repo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	inviterNames := make(map[snowflake.ID]string)
	views := make([]domain.InvitationView, 0, len(invitations))
	for _, invitation := range invitations {
		name, ok := inviterNames[invitation.InvitedBy]
		if !ok {
			if inviter, err := s.teamRepo.FindIdentity(ctx, invitation.InvitedBy); err == nil {
				name = inviter.Name
			}
			inviterNames[invitation.InvitedBy] = name
		}
		views = append(views, s.view(invitation, team.Name, name, now))
	}
	return views, nil
}

// AcceptLink builds the public URL an invitee follows to redeem a token.
func (s *Service) AcceptLink(rawToken string) string {
	return s.cfg.BaseURL + "/team-invitations/" + rawToken
}

func (s *Service) newToken(ctx context.Context, repo domain.Repository) (string, error) {
	for i := 0; i < tokenAttempts; i++ {
		raw, err := token.New()
		if err != nil {
			return "", err
		}
		exists, err := repo.TokenExists(ctx, raw)
		if err != nil {
			return "", err
		}
		if !exists {
			return raw, nil
		}
	}
	return "", errors.New("invitation token space exhausted")
}

func (s *Service) notify(invitation domain.Invitation, teamName, inviterName string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	link := s.AcceptLink(invitation.Token)
	if err := s.notifier.SendInvite(ctx, invitation.Email, link, teamName, inviterName); err != nil {
		s.metrics.RecordNotification("error")
		s.log.Warn("invitation email delivery failed",
			zap.String("invitation_id", invitation.ID.String()),
			zap.String("team_id", invitation.TeamID.String()),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordNotification("sent")
}

func (s *Service) view(invitation domain.Invitation, teamName, inviterName string, now time.Time) domain.InvitationView {
	return domain.InvitationView{
		ID:        invitation.ID.String(),
		TeamID:    invitation.TeamID.String(),
		TeamName:  teamName,
		Email:     invitation.Email,
		Role:      invitation.Role,
		InvitedBy: inviterName,
		CreatedAt: invitation.CreatedAt,
		ExpiresAt: invitation.ExpiresAt,
		Expired:   invitation.IsExpired(now),
	}
}
