package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	teamdomain "github.com/huddlehq/huddle/internal/team/domain"
)

type createTeamRequest struct {
	Name string `json:"name"`
}

type updateTeamRequest struct {
	Name string `json:"name"`
}

type teamDirectoryEntry struct {
	TeamID   string `json:"team_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsOwner  bool   `json:"is_owner"`
	Personal bool   `json:"personal"`
}

func (s *Server) ListUserTeams(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	directory, err := s.teamsvc.RolesForUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries := make([]teamDirectoryEntry, 0, len(directory))
	for _, item := range directory {
		entries = append(entries, teamDirectoryEntry{
			TeamID:   item.TeamID.String(),
			Name:     item.Name,
			Role:     item.Role,
			IsOwner:  item.IsOwner,
			Personal: item.Personal,
		})
	}

	c.JSON(http.StatusOK, gin.H{"teams": entries})
}

func (s *Server) CreateTeam(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	team, err := s.teamsvc.Create(c.Request.Context(), userID, teamdomain.CreateTeamRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, team)
}

func (s *Server) GetTeam(c *gin.Context) {
	teamID, err := s.teamIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	team, err := s.teamsvc.GetByID(c.Request.Context(), teamID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

func (s *Server) UpdateTeamName(c *gin.Context) {
	teamID, err := s.teamIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	team, err := s.teamsvc.UpdateName(c.Request.Context(), teamID, req.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

func (s *Server) DeleteTeam(c *gin.Context) {
	teamID, err := s.teamIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.teamsvc.Delete(c.Request.Context(), teamID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) SwitchTeam(c *gin.Context) {
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

	if err := s.teamsvc.SwitchCurrentTeam(c.Request.Context(), userID, teamID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
