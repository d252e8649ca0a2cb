package signup

import (
	"context"
	"strings"

	authdomain "github.com/huddlehq/huddle/internal/auth/domain"
	"github.com/huddlehq/huddle/internal/signup/domain"
)

type service struct {
	authsvc     authdomain.Service
	provisioner domain.Provisioner
}

func NewService(authsvc authdomain.Service, provisioner domain.Provisioner) domain.Service {
	return &service{
		authsvc:     authsvc,
		provisioner: provisioner,
	}
}

func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidRequest
	}

	user, err := s.authsvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	teamID, err := s.provisioner.Provision(ctx, user.ID.String())
	if err != nil {
		return nil, err
	}

	session, err := s.authsvc.IssueSession(ctx, user.ID, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		RawToken:  session.RawToken,
		ExpiresAt: session.ExpiresAt,
		UserID:    user.ID.String(),
		TeamID:    teamID,
	}, nil
}
