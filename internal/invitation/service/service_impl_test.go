package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/huddlehq/huddle/internal/auth/domain"
	authrepository "github.com/huddlehq/huddle/internal/auth/repository"
	"github.com/huddlehq/huddle/internal/clock"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/invitation/domain"
	"github.com/huddlehq/huddle/internal/invitation/repository"
	teamdomain "github.com/huddlehq/huddle/internal/team/domain"
	"github.com/huddlehq/huddle/internal/team/event"
	teamrepository "github.com/huddlehq/huddle/internal/team/repository"
	dbpkg "github.com/huddlehq/huddle/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sentInvite struct {
	email       string
	link        string
	teamName    string
	inviterName string
}

type stubNotifier struct {
	sent chan sentInvite
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{sent: make(chan sentInvite, 8)}
}

func (n *stubNotifier) SendInvite(ctx context.Context, email, link, teamName, inviterName string) error {
	n.sent <- sentInvite{email: email, link: link, teamName: teamName, inviterName: inviterName}
	return nil
}

type fixture struct {
	conn     *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
	notifier *stubNotifier
	repo     domain.Repository
	teamRepo teamdomain.Repository
	userRepo authdomain.Repository
	svc      domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&teamdomain.Team{},
		&teamdomain.TeamMember{},
		&domain.Invitation{},
		&event.TeamEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	notifier := newStubNotifier()
	repo := repository.NewRepository(conn)
	teamRepo := teamrepository.NewRepository(conn)
	userRepo, _ := authrepository.New(conn)

	cfg := config.Config{
		AppName:     "huddle",
		Environment: "test",
		BaseURL:     "http://localhost:8080",
	}

	svc := New(
		zap.NewNop(),
		conn,
		cfg,
		repo,
		teamRepo,
		userRepo,
		event.NewOutboxPublisher(conn, node),
		notifier,
		clk,
		node,
	)

	return &fixture{
		conn:     conn,
		node:     node,
		clk:      clk,
		notifier: notifier,
		repo:     repo,
		teamRepo: teamRepo,
		userRepo: userRepo,
		svc:      svc,
	}
}

func (f *fixture) createUser(t *testing.T, name, email string) *authdomain.User {
	t.Helper()
	user := &authdomain.User{
		ID:    f.node.Generate(),
		Name:  name,
		Email: email,
	}
	require.NoError(t, f.userRepo.Create(context.Background(), user))
	return user
}

func (f *fixture) createTeam(t *testing.T, name string, owner *authdomain.User) *teamdomain.Team {
	t.Helper()
	ctx := context.Background()
	team := teamdomain.Team{
		ID:          f.node.Generate(),
		Name:        name,
		Slug:        name,
		OwnerUserID: owner.ID,
		CreatedAt:   f.clk.Now(),
		UpdatedAt:   f.clk.Now(),
	}
	require.NoError(t, f.teamRepo.CreateTeam(ctx, team))
	require.NoError(t, f.teamRepo.UpsertMember(ctx, teamdomain.TeamMember{
		ID:        f.node.Generate(),
		TeamID:    team.ID,
		UserID:    owner.ID,
		Role:      teamdomain.RoleAdmin,
		CreatedAt: f.clk.Now(),
	}))
	return &team
}

func (f *fixture) rawToken(t *testing.T, invitationID snowflake.ID) string {
	t.Helper()
	var token string
	require.NoError(t, f.conn.Raw(
		`SELECT token FROM team_invitations WHERE id = ?`, invitationID,
	).Scan(&token).Error)
	require.NotEmpty(t, token)
	return token
}

func TestInviteCreatesPendingInvitation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "Ana Ortiz", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	view, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{
		Email: "b@x.com",
		Role:  teamdomain.RoleMember,
	})
	require.NoError(t, err)
	require.Equal(t, "b@x.com", view.Email)
	require.Equal(t, teamdomain.RoleMember, view.Role)
	require.Equal(t, "acme", view.TeamName)
	require.False(t, view.Expired)
	require.Equal(t, f.clk.Now().Add(domain.TTL), view.ExpiresAt)

	select {
	case invite := <-f.notifier.sent:
		require.Equal(t, "b@x.com", invite.email)
		require.Equal(t, "acme", invite.teamName)
		require.Contains(t, invite.link, "http://localhost:8080/team-invitations/")
	case <-time.After(2 * time.Second):
		t.Fatal("expected an invitation email")
	}

	var events []event.TeamEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, event.InvitationCreatedTopic, events[0].EventType)
}

func TestInviteRejectsInvalidEmail(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	_, err := f.svc.Invite(context.Background(), owner.ID, team.ID, domain.InviteRequest{Email: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestInviteRejectsSelfInvitation(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	_, err := f.svc.Invite(context.Background(), owner.ID, team.ID, domain.InviteRequest{Email: "a@x.com"})
	require.ErrorIs(t, err, domain.ErrSelfInvitation)
}

func TestInviteRejectsExistingMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	member := f.createUser(t, "Ben", "b@x.com")
	require.NoError(t, f.teamRepo.UpsertMember(ctx, teamdomain.TeamMember{
		ID:     f.node.Generate(),
		TeamID: team.ID,
		UserID: member.ID,
		Role:   teamdomain.RoleMember,
	}))

	_, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.ErrorIs(t, err, domain.ErrAlreadyMember)
}

func TestInviteRejectsDuplicatePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	_, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)

	_, err = f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.ErrorIs(t, err, domain.ErrDuplicateInvitation)
}

func TestInviteAllowsReinviteAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	_, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)

	f.clk.Advance(domain.TTL + time.Minute)

	_, err = f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)

	// The expired row was purged, not shadowed.
	var count int64
	require.NoError(t, f.conn.Raw(
		`SELECT COUNT(1) FROM team_invitations WHERE team_id = ? AND email = ?`,
		team.ID, "b@x.com",
	).Scan(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestInvitationRowsUniquePerTeamAndEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	// Two writers that both passed the pending pre-check collide on the
	// (team_id, email) index, so only one row can ever commit.
	first := domain.Invitation{
		ID:        f.node.Generate(),
		TeamID:    team.ID,
		Email:     "b@x.com",
		Role:      teamdomain.RoleMember,
		Token:     "token-one",
		InvitedBy: owner.ID,
		CreatedAt: f.clk.Now(),
		ExpiresAt: f.clk.Now().Add(domain.TTL),
	}
	require.NoError(t, f.repo.Create(ctx, first))

	second := first
	second.ID = f.node.Generate()
	second.Token = "token-two"
	err := f.repo.Create(ctx, second)
	require.Error(t, err)
	require.True(t, dbpkg.IsDuplicateKeyErr(err))
}

func TestAcceptJoinsTeamAndConsumesInvitation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)
	invitee := f.createUser(t, "Ben", "b@x.com")

	view, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)

	invitationID, err := snowflake.ParseString(view.ID)
	require.NoError(t, err)
	token := f.rawToken(t, invitationID)

	member, err := f.svc.Accept(ctx, invitee.ID, token)
	require.NoError(t, err)
	require.Equal(t, team.ID, member.TeamID)
	require.Equal(t, invitee.ID, member.UserID)
	require.Equal(t, teamdomain.RoleMember, member.Role)

	isMember, err := f.teamRepo.IsMember(ctx, team.ID, invitee.ID)
	require.NoError(t, err)
	require.True(t, isMember)

	// Accepting must not touch the user's current team.
	identity, err := f.teamRepo.FindIdentity(ctx, invitee.ID)
	require.NoError(t, err)
	require.Nil(t, identity.CurrentTeamID)

	// Single use: the second redeem fails.
	_, err = f.svc.Accept(ctx, invitee.ID, token)
	require.ErrorIs(t, err, domain.ErrInvitationNotFound)
}

func TestAcceptHonorsExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)
	invitee := f.createUser(t, "Ben", "b@x.com")

	view, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)
	invitationID, err := snowflake.ParseString(view.ID)
	require.NoError(t, err)
	token := f.rawToken(t, invitationID)

	f.clk.Advance(59 * time.Minute)
	resolved, err := f.svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.False(t, resolved.Expired)

	f.clk.Advance(2 * time.Minute)
	resolved, err = f.svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.True(t, resolved.Expired)

	_, err = f.svc.Accept(ctx, invitee.ID, token)
	require.ErrorIs(t, err, domain.ErrInvitationExpired)
}

func TestAcceptRejectsEmailMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)
	stranger := f.createUser(t, "Cal", "c@x.com")

	view, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)
	invitationID, err := snowflake.ParseString(view.ID)
	require.NoError(t, err)
	token := f.rawToken(t, invitationID)

	_, err = f.svc.Accept(ctx, stranger.ID, token)
	require.ErrorIs(t, err, domain.ErrEmailMismatch)
}

func TestRegisterAndAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	view, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{
		Email: "b@x.com",
		Role:  teamdomain.RoleAdmin,
	})
	require.NoError(t, err)
	invitationID, err := snowflake.ParseString(view.ID)
	require.NoError(t, err)
	token := f.rawToken(t, invitationID)

	result, err := f.svc.RegisterAndAccept(ctx, token, domain.RegisterRequest{
		Name:     "Ben Lee",
		Email:    "b@x.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	require.Equal(t, team.ID, result.Membership.TeamID)
	require.Equal(t, teamdomain.RoleAdmin, result.Membership.Role)

	user, err := f.userRepo.FindByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	require.NotNil(t, user.EmailVerifiedAt)
	require.NotNil(t, user.PasswordHash)

	// The new account owns a personal team and lands on the invited team.
	owned, err := f.teamRepo.ListOwnedTeams(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.True(t, owned[0].Personal)

	identity, err := f.teamRepo.FindIdentity(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, identity.CurrentTeamID)
	require.Equal(t, team.ID, *identity.CurrentTeamID)

	_, err = f.repo.GetByID(ctx, invitationID)
	require.ErrorIs(t, err, domain.ErrInvitationNotFound)
}

func TestRegisterAndAcceptRejectsDifferentEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	view, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)
	invitationID, err := snowflake.ParseString(view.ID)
	require.NoError(t, err)
	token := f.rawToken(t, invitationID)

	_, err = f.svc.RegisterAndAccept(ctx, token, domain.RegisterRequest{
		Name:     "Cal",
		Email:    "c@x.com",
		Password: "correct horse battery",
	})
	require.ErrorIs(t, err, domain.ErrEmailMismatch)

	// The rejected attempt must leave the invitation redeemable.
	_, err = f.repo.GetByID(ctx, invitationID)
	require.NoError(t, err)
}

func TestRegisterAndAcceptRejectsTakenEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)
	f.createUser(t, "Ben", "b@x.com")

	view, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)
	invitationID, err := snowflake.ParseString(view.ID)
	require.NoError(t, err)
	token := f.rawToken(t, invitationID)

	_, err = f.svc.RegisterAndAccept(ctx, token, domain.RegisterRequest{
		Name:     "Ben",
		Email:    "b@x.com",
		Password: "correct horse battery",
	})
	require.ErrorIs(t, err, authdomain.ErrEmailTaken)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	view, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)
	invitationID, err := snowflake.ParseString(view.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, team.ID, invitationID))
	require.ErrorIs(t, f.svc.Revoke(ctx, team.ID, invitationID), domain.ErrInvitationNotFound)
}

func TestRevokeScopedToTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)
	other := f.createTeam(t, "globex", owner)

	view, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)
	invitationID, err := snowflake.ParseString(view.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Revoke(ctx, other.ID, invitationID), domain.ErrInvitationNotFound)
}

func TestListByTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "Ana", "a@x.com")
	team := f.createTeam(t, "acme", owner)

	_, err := f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "b@x.com"})
	require.NoError(t, err)
	_, err = f.svc.Invite(ctx, owner.ID, team.ID, domain.InviteRequest{Email: "c@x.com", Role: teamdomain.RoleAdmin})
	require.NoError(t, err)

	views, err := f.svc.ListByTeam(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "b@x.com", views[0].Email)
	require.Equal(t, "c@x.com", views[1].Email)
	require.Equal(t, "Ana", views[0].InvitedBy)
}
