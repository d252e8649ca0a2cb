package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	authdomain "github.com/huddlehq/huddle/internal/auth/domain"
	"github.com/huddlehq/huddle/internal/auth/session"
	"github.com/huddlehq/huddle/internal/config"
	invitationdomain "github.com/huddlehq/huddle/internal/invitation/domain"
	signupdomain "github.com/huddlehq/huddle/internal/signup/domain"
	teamdomain "github.com/huddlehq/huddle/internal/team/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	authsvc       authdomain.Service
	teamsvc       teamdomain.Service
	teamRepo      teamdomain.Repository
	invitationsvc invitationdomain.Service
	signupsvc     signupdomain.Service
	sessions      *session.Manager
	genID         *snowflake.Node
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Authsvc       authdomain.Service
	Teamsvc       teamdomain.Service
	TeamRepo      teamdomain.Repository
	Invitationsvc invitationdomain.Service
	Signupsvc     signupdomain.Service
	Sessions      *session.Manager
	GenID         *snowflake.Node
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		authsvc:       p.Authsvc,
		teamsvc:       p.Teamsvc,
		teamRepo:      p.TeamRepo,
		invitationsvc: p.Invitationsvc,
		signupsvc:     p.Signupsvc,
		sessions:      p.Sessions,
		genID:         p.GenID,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerInvitationRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.AuthRequired())

	api.GET("/teams", s.ListUserTeams)
	api.POST("/teams", s.CreateTeam)
	api.GET("/teams/:id", s.RequireTeamRole(teamdomain.RoleAdmin, teamdomain.RoleMember), s.GetTeam)
	api.PATCH("/teams/:id", s.RequireTeamRole(teamdomain.RoleAdmin), s.UpdateTeamName)
	api.DELETE("/teams/:id", s.RequireTeamRole(teamdomain.RoleAdmin), s.DeleteTeam)
	api.POST("/teams/:id/switch", s.SwitchTeam)

	api.GET("/teams/:id/members", s.RequireTeamRole(teamdomain.RoleAdmin, teamdomain.RoleMember), s.ListTeamMembers)
	api.PATCH("/teams/:id/members/:userId", s.RequireTeamRole(teamdomain.RoleAdmin), s.SetTeamMemberRole)
	api.DELETE("/teams/:id/members/:userId", s.RemoveTeamMember)

	api.GET("/teams/:id/invitations", s.RequireTeamRole(teamdomain.RoleAdmin), s.ListTeamInvitations)
	api.POST("/teams/:id/invitations", s.RequireTeamRole(teamdomain.RoleAdmin), s.InviteTeamMember)
	api.DELETE("/teams/:id/invitations/:invitationId", s.RequireTeamRole(teamdomain.RoleAdmin), s.RevokeTeamInvitation)
}

// Invitation links travel by email, so token routes live outside /api.
func (s *Server) registerInvitationRoutes() {
	invites := s.engine.Group("/team-invitations")

	invites.GET("/:token", s.ResolveInvitation)
	invites.POST("/:token/accept", s.AuthRequired(), s.AcceptInvitation)
	invites.POST("/:token/register", s.RegisterAndAcceptInvitation)
}
