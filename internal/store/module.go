package store

import (
	"context"

	"table_order/internal/api"
	"table_order/internal/config"
	"table_order/internal/socket"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"store",
		fx.Provide(func(cfg config.Config, apiClient *api.Client, socketClient *socket.Client, logger *zap.Logger) *Store {
			return New(apiClient, socketClient, cfg.Categories(), logger)
		}),
		fx.Invoke(func(lc fx.Lifecycle, s *Store) {
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					s.Close()
					return nil
				},
			})
		}),
	)
}
