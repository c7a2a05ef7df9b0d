package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/migration"
	"github.com/smallbiznis/gymgate/internal/observability"
	"github.com/smallbiznis/gymgate/internal/seed"
	"github.com/smallbiznis/gymgate/internal/server"
	"github.com/smallbiznis/gymgate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Schema first, then the HTTP surface and everything behind it.
		seed.Module,
		migration.Module,
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
