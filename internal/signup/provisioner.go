package signup

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/huddlehq/huddle/internal/signup/domain"
	teamdomain "github.com/huddlehq/huddle/internal/team/domain"
)

// teamProvisioner guarantees every new account owns a personal team, which
// also becomes their first current team.
type teamProvisioner struct {
	teamsvc teamdomain.Service
}

func NewTeamProvisioner(teamsvc teamdomain.Service) domain.Provisioner {
	return &teamProvisioner{teamsvc: teamsvc}
}

func (p *teamProvisioner) Provision(ctx context.Context, userID string) (string, error) {
	parsedID, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil {
		return "", err
	}

	team, err := p.teamsvc.EnsurePersonalTeam(ctx, parsedID)
	if err != nil {
		return "", err
	}
	return team.ID, nil
}
