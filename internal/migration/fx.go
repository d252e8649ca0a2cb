package migration

import (
	authdomain "github.com/huddlehq/huddle/internal/auth/domain"
	"github.com/huddlehq/huddle/internal/config"
	invitationdomain "github.com/huddlehq/huddle/internal/invitation/domain"
	teamdomain "github.com/huddlehq/huddle/internal/team/domain"
	teamevent "github.com/huddlehq/huddle/internal/team/event"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned migrations target postgres; other dialects are for
			// local development and fall back to schema sync.
			return conn.AutoMigrate(
				&authdomain.User{},
				&authdomain.Session{},
				&teamdomain.Team{},
				&teamdomain.TeamMember{},
				&invitationdomain.Invitation{},
				&teamevent.TeamEvent{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
