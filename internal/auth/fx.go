package auth

import (
	"github.com/huddlehq/huddle/internal/auth/repository"
	"github.com/huddlehq/huddle/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
