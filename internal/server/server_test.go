package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/huddlehq/huddle/internal/auth/domain"
	"github.com/huddlehq/huddle/internal/auth/session"
	"github.com/huddlehq/huddle/internal/config"
	invitationdomain "github.com/huddlehq/huddle/internal/invitation/domain"
	signupdomain "github.com/huddlehq/huddle/internal/signup/domain"
	teamdomain "github.com/huddlehq/huddle/internal/team/domain"
	teamrepository "github.com/huddlehq/huddle/internal/team/repository"
	dbpkg "github.com/huddlehq/huddle/pkg/db"
	"go.uber.org/zap"
)

type fakeAuthService struct {
	sessions map[string]snowflake.ID
}

func (f *fakeAuthService) CreateUser(ctx context.Context, req authdomain.CreateUserRequest) (*authdomain.User, error) {
	return nil, authdomain.ErrEmailTaken
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	return nil, authdomain.ErrInvalidCredentials
}

func (f *fakeAuthService) Logout(ctx context.Context, rawToken string) error {
	return nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Session, error) {
	userID, ok := f.sessions[rawToken]
	if !ok {
		return nil, authdomain.ErrInvalidSession
	}
	return &authdomain.Session{UserID: userID}, nil
}

func (f *fakeAuthService) GetUser(ctx context.Context, id snowflake.ID) (*authdomain.User, error) {
	return &authdomain.User{ID: id, Name: "Ana", Email: "a@x.com"}, nil
}

func (f *fakeAuthService) MarkEmailVerified(ctx context.Context, id snowflake.ID) error {
	return nil
}

func (f *fakeAuthService) IssueSession(ctx context.Context, userID snowflake.ID, userAgent, ipAddress string) (*authdomain.LoginResult, error) {
	return &authdomain.LoginResult{
		RawToken:  "issued-token",
		ExpiresAt: time.Now().Add(time.Hour),
		UserID:    userID,
	}, nil
}

type fakeInvitationService struct {
	inviteCalls   int
	acceptCalls   int
	lastInviter   snowflake.ID
	lastTeam      snowflake.ID
	lastToken     string
	lastAcceptor  snowflake.ID
	inviteErr     error
	acceptErr     error
	resolveErr    error
	resolvedView  *invitationdomain.InvitationView
	acceptedEdge  *teamdomain.TeamMember
	registeredRes *invitationdomain.RegisterResult
}

func (f *fakeInvitationService) Invite(ctx context.Context, inviterID, teamID snowflake.ID, req invitationdomain.InviteRequest) (*invitationdomain.InvitationView, error) {
	f.inviteCalls++
	f.lastInviter = inviterID
	f.lastTeam = teamID
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	return &invitationdomain.InvitationView{Email: req.Email, Role: req.Role}, nil
}

func (f *fakeInvitationService) Resolve(ctx context.Context, token string) (*invitationdomain.InvitationView, error) {
	f.lastToken = token
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolvedView, nil
}

func (f *fakeInvitationService) Accept(ctx context.Context, userID snowflake.ID, token string) (*teamdomain.TeamMember, error) {
	f.acceptCalls++
	f.lastAcceptor = userID
	f.lastToken = token
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	return f.acceptedEdge, nil
}

func (f *fakeInvitationService) RegisterAndAccept(ctx context.Context, token string, req invitationdomain.RegisterRequest) (*invitationdomain.RegisterResult, error) {
	f.lastToken = token
	return f.registeredRes, nil
}

func (f *fakeInvitationService) Revoke(ctx context.Context, teamID, invitationID snowflake.ID) error {
	return nil
}

func (f *fakeInvitationService) ListByTeam(ctx context.Context, teamID snowflake.ID) ([]invitationdomain.InvitationView, error) {
	return nil, nil
}

type fakeTeamService struct{}

func (f *fakeTeamService) Create(ctx context.Context, userID snowflake.ID, req teamdomain.CreateTeamRequest) (*teamdomain.TeamResponse, error) {
	return &teamdomain.TeamResponse{Name: req.Name}, nil
}
func (f *fakeTeamService) UpdateName(ctx context.Context, teamID snowflake.ID, name string) (*teamdomain.TeamResponse, error) {
	return &teamdomain.TeamResponse{Name: name}, nil
}
func (f *fakeTeamService) Delete(ctx context.Context, teamID snowflake.ID) error { return nil }
func (f *fakeTeamService) GetByID(ctx context.Context, teamID snowflake.ID) (*teamdomain.TeamResponse, error) {
	return &teamdomain.TeamResponse{ID: teamID.String()}, nil
}
func (f *fakeTeamService) SwitchCurrentTeam(ctx context.Context, userID, teamID snowflake.ID) error {
	return nil
}
func (f *fakeTeamService) RemoveMemberAndReassign(ctx context.Context, teamID, userID snowflake.ID) error {
	return nil
}
func (f *fakeTeamService) SetMemberRole(ctx context.Context, teamID, userID snowflake.ID, role string) error {
	return nil
}
func (f *fakeTeamService) ListMembers(ctx context.Context, teamID snowflake.ID) ([]teamdomain.Member, error) {
	return nil, nil
}
func (f *fakeTeamService) RolesForUser(ctx context.Context, userID snowflake.ID) ([]teamdomain.TeamRole, error) {
	return nil, nil
}
func (f *fakeTeamService) EnsurePersonalTeam(ctx context.Context, userID snowflake.ID) (*teamdomain.TeamResponse, error) {
	return nil, nil
}

type fakeSignupService struct {
	called bool
}

func (f *fakeSignupService) Signup(ctx context.Context, req signupdomain.Request) (*signupdomain.Result, error) {
	f.called = true
	return &signupdomain.Result{
		RawToken:  "signup-token",
		ExpiresAt: time.Now().Add(time.Hour),
		UserID:    "1",
		TeamID:    "2",
	}, nil
}

type serverFixture struct {
	srv        *Server
	node       *snowflake.Node
	auth       *fakeAuthService
	invitation *fakeInvitationService
	signup     *fakeSignupService
	teamRepo   teamdomain.Repository

	ownerID  snowflake.ID
	memberID snowflake.ID
	teamID   snowflake.ID
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := dbpkg.NewTest()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	if err := conn.AutoMigrate(&teamdomain.Team{}, &teamdomain.TeamMember{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}

	teamRepo := teamrepository.NewRepository(conn)
	ctx := context.Background()

	ownerID := node.Generate()
	memberID := node.Generate()
	teamID := node.Generate()
	now := time.Now().UTC()
	if err := teamRepo.CreateTeam(ctx, teamdomain.Team{
		ID:          teamID,
		Name:        "acme",
		Slug:        "acme",
		OwnerUserID: ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	for id, role := range map[snowflake.ID]string{
		ownerID:  teamdomain.RoleAdmin,
		memberID: teamdomain.RoleMember,
	} {
		if err := teamRepo.UpsertMember(ctx, teamdomain.TeamMember{
			ID:     node.Generate(),
			TeamID: teamID,
			UserID: id,
			Role:   role,
		}); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}

	auth := &fakeAuthService{sessions: map[string]snowflake.ID{
		"owner-token":  ownerID,
		"member-token": memberID,
	}}
	invitation := &fakeInvitationService{}
	signupSvc := &fakeSignupService{}
	cfg := config.Config{Environment: "test"}

	srv := NewServer(ServerParams{
		Gin:           NewEngine(zap.NewNop()),
		Cfg:           cfg,
		Authsvc:       auth,
		Teamsvc:       &fakeTeamService{},
		TeamRepo:      teamRepo,
		Invitationsvc: invitation,
		Signupsvc:     signupSvc,
		Sessions:      session.NewManager(cfg),
		GenID:         node,
	})

	return &serverFixture{
		srv:        srv,
		node:       node,
		auth:       auth,
		invitation: invitation,
		signup:     signupSvc,
		teamRepo:   teamRepo,
		ownerID:    ownerID,
		memberID:   memberID,
		teamID:     teamID,
	}
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func TestResolveInvitation(t *testing.T) {
	f := newServerFixture(t)
	f.invitation.resolvedView = &invitationdomain.InvitationView{
		Email:    "b@x.com",
		TeamName: "acme",
	}

	rec := f.do(t, http.MethodGet, "/team-invitations/some-token", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.invitation.lastToken != "some-token" {
		t.Fatalf("expected token passed through, got %q", f.invitation.lastToken)
	}
}

func TestResolveInvitationNotFound(t *testing.T) {
	f := newServerFixture(t)
	f.invitation.resolveErr = invitationdomain.ErrInvitationNotFound

	rec := f.do(t, http.MethodGet, "/team-invitations/missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAcceptInvitationRequiresAuth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/team-invitations/tok/accept", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if f.invitation.acceptCalls != 0 {
		t.Fatal("expected no accept call without a session")
	}
}

func TestAcceptInvitation(t *testing.T) {
	f := newServerFixture(t)
	f.invitation.acceptedEdge = &teamdomain.TeamMember{
		TeamID: f.teamID,
		UserID: f.memberID,
		Role:   teamdomain.RoleMember,
	}

	rec := f.do(t, http.MethodPost, "/team-invitations/tok/accept", "member-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.invitation.lastAcceptor != f.memberID {
		t.Fatalf("expected acceptor %v, got %v", f.memberID, f.invitation.lastAcceptor)
	}
}

func TestAcceptExpiredInvitationMapsToGone(t *testing.T) {
	f := newServerFixture(t)
	f.invitation.acceptErr = invitationdomain.ErrInvitationExpired

	rec := f.do(t, http.MethodPost, "/team-invitations/tok/accept", "member-token", nil)
	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", rec.Code)
	}
}

func TestInviteTeamMemberRequiresAdmin(t *testing.T) {
	f := newServerFixture(t)
	body := map[string]string{"email": "b@x.com", "role": teamdomain.RoleMember}

	rec := f.do(t, http.MethodPost, "/api/teams/"+f.teamID.String()+"/invitations", "member-token", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", rec.Code)
	}
	if f.invitation.inviteCalls != 0 {
		t.Fatal("expected no invite call for a plain member")
	}

	rec = f.do(t, http.MethodPost, "/api/teams/"+f.teamID.String()+"/invitations", "owner-token", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.invitation.lastInviter != f.ownerID || f.invitation.lastTeam != f.teamID {
		t.Fatal("expected inviter and team forwarded to the service")
	}
}

func TestInviteConflictMapsTo409(t *testing.T) {
	f := newServerFixture(t)
	f.invitation.inviteErr = invitationdomain.ErrAlreadyMember

	rec := f.do(t, http.MethodPost, "/api/teams/"+f.teamID.String()+"/invitations", "owner-token",
		map[string]string{"email": "b@x.com"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSignupSetsSessionCookie(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/signup", "",
		map[string]string{"name": "Ana", "email": "a@x.com", "password": "correct horse battery"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !f.signup.called {
		t.Fatal("expected signup service call")
	}

	var sessionCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == session.DefaultCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil || sessionCookie.Value != "signup-token" {
		t.Fatalf("expected session cookie, got %v", sessionCookie)
	}
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
