package internal

import (
	"context"

	"table_order/internal/api"
	"table_order/internal/cli"
	"table_order/internal/config"
	"table_order/internal/logging"
	"table_order/internal/socket"
	"table_order/internal/store"

	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Run() error {
	var runner *cli.Runner

	app := fx.New(
		logger.Module(),
		logger.WithFxDefaultLogger(),
		config.Module(),
		logging.Module(),
		api.Module(),
		socket.Module(),
		store.Module(),
		cli.Module(),
		fx.Populate(&runner),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	return runner.Execute()
}
