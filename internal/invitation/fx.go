package invitation

import (
	"github.com/huddlehq/huddle/internal/invitation/repository"
	"github.com/huddlehq/huddle/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
