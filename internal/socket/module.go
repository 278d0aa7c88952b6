package socket

import (
	"context"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"socket",
		fx.Provide(NewClient),
		fx.Invoke(func(lc fx.Lifecycle, client *Client) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					client.Start()
					return nil
				},
				OnStop: func(_ context.Context) error {
					return client.Close()
				},
			})
		}),
	)
}
