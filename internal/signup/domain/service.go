package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Signup(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

type Result struct {
	RawToken  string
	ExpiresAt time.Time
	UserID    string
	TeamID    string
}

// Provisioner sets up the resources a fresh account must own before its
// first session is issued.
type Provisioner interface {
	Provision(ctx context.Context, userID string) (teamID string, err error)
}

var ErrInvalidRequest = errors.New("invalid signup request")
