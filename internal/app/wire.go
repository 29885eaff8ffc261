//go:build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"hedgebot/internal/config"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config, path string) (*App, error) {
	wire.Build(provideAppBuilder, provideAppFromBuilder)
	return nil, nil
}
