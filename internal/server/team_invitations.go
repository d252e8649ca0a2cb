package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invitationdomain "github.com/huddlehq/huddle/internal/invitation/domain"
)

type inviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type registerAndAcceptRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) InviteTeamMember(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	teamID, err := s.teamIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req inviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invitation, err := s.invitationsvc.Invite(c.Request.Context(), userID, teamID, invitationdomain.InviteRequest{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invitation)
}

func (s *Server) ListTeamInvitations(c *gin.Context) {
	teamID, err := s.teamIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invitations, err := s.invitationsvc.ListByTeam(c.Request.Context(), teamID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

func (s *Server) RevokeTeamInvitation(c *gin.Context) {
	teamID, err := s.teamIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	raw := strings.TrimSpace(c.Param("invitationId"))
	invitationID, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, invitationdomain.ErrInvitationNotFound)
		return
	}

	if err := s.invitationsvc.Revoke(c.Request.Context(), teamID, invitationID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ResolveInvitation(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, invitationdomain.ErrInvitationNotFound)
		return
	}

	invitation, err := s.invitationsvc.Resolve(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	token := strings.TrimSpace(c.Param("token"))
	member, err := s.invitationsvc.Accept(c.Request.Context(), userID, token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"team_id": member.TeamID.String(),
		"role":    member.Role,
	})
}

// RegisterAndAcceptInvitation creates an account from the invitation and
// joins the team in one step, then signs the new user in.
func (s *Server) RegisterAndAcceptInvitation(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))

	var req registerAndAcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.invitationsvc.RegisterAndAccept(c.Request.Context(), token, invitationdomain.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	session, err := s.authsvc.IssueSession(c.Request.Context(), result.UserID, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.sessions.Set(c, session.RawToken, session.ExpiresAt)

	c.JSON(http.StatusCreated, gin.H{
		"user_id": result.UserID.String(),
		"team_id": result.Membership.TeamID.String(),
		"role":    result.Membership.Role,
	})
}
