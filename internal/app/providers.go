package app

import (
	"context"

	"hedgebot/internal/config"
)

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppFromBuilder(b *AppBuilder, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func provideAppBuilder(cfg *config.Config, path string) *AppBuilder {
	return NewAppBuilder(cfg, WithConfigPath(path))
}

var _ appBuilderDeps = (*AppBuilder)(nil)
