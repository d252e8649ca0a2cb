package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	teamdomain "github.com/huddlehq/huddle/internal/team/domain"
)

type setMemberRoleRequest struct {
	Role string `json:"role"`
}

type teamMemberResponse struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

func (s *Server) ListTeamMembers(c *gin.Context) {
	teamID, err := s.teamIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	members, err := s.teamsvc.ListMembers(c.Request.Context(), teamID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries := make([]teamMemberResponse, 0, len(members))
	for _, member := range members {
		entries = append(entries, teamMemberResponse{
			UserID:   member.UserID.String(),
			Name:     member.Name,
			Email:    member.Email,
			Role:     member.Role,
			JoinedAt: member.JoinedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"members": entries})
}

func (s *Server) SetTeamMemberRole(c *gin.Context) {
	teamID, err := s.teamIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	memberID, err := memberIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req setMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.teamsvc.SetMemberRole(c.Request.Context(), teamID, memberID, req.Role); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoveTeamMember detaches a member. Admins may remove anyone; a member
// may remove only themselves.
func (s *Server) RemoveTeamMember(c *gin.Context) {
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

	memberID, err := memberIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if memberID != userID {
		allowed, err := s.isTeamAdmin(c, teamID, userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !allowed {
			AbortWithError(c, teamdomain.ErrForbidden)
			return
		}
	}

	if err := s.teamsvc.RemoveMemberAndReassign(c.Request.Context(), teamID, memberID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) isTeamAdmin(c *gin.Context, teamID, userID snowflake.ID) (bool, error) {
	team, err := s.teamRepo.GetTeam(c.Request.Context(), teamID)
	if err != nil {
		return false, err
	}
	if team.OwnerUserID == userID {
		return true, nil
	}

	member, err := s.teamRepo.GetMember(c.Request.Context(), teamID, userID)
	if err != nil {
		return false, nil
	}
	return member.Role == teamdomain.RoleAdmin, nil
}

func memberIDParam(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param("userId"))
	if raw == "" {
		return 0, teamdomain.ErrInvalidUser
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, teamdomain.ErrInvalidUser
	}
	return id, nil
}
