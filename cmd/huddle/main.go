package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/auth/session"
	"github.com/huddlehq/huddle/internal/clock"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/invitation"
	"github.com/huddlehq/huddle/internal/logger"
	"github.com/huddlehq/huddle/internal/migration"
	"github.com/huddlehq/huddle/internal/providers/email"
	"github.com/huddlehq/huddle/internal/server"
	"github.com/huddlehq/huddle/internal/signup"
	"github.com/huddlehq/huddle/internal/team"
	"github.com/huddlehq/huddle/pkg/db"
	"github.com/huddlehq/huddle/pkg/telemetry"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		telemetry.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domains
		auth.Module,
		session.Module,
		team.Module,
		invitation.Module,
		email.Module,
		signup.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
