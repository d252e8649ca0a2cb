package team

import (
	"github.com/huddlehq/huddle/internal/team/event"
	"github.com/huddlehq/huddle/internal/team/repository"
	"github.com/huddlehq/huddle/internal/team/service"
	"go.uber.org/fx"
)

var Module = fx.Module("team.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(event.NewOutboxPublisher),
	fx.Provide(service.New),
)
