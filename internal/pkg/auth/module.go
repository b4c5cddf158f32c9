package auth

import (
	"errors"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/marketplace/internal/config"
)

// Module provides bearer token verification via fx.
var Module = fx.Provide(newTokenStrategy)

type strategyParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newTokenStrategy(p strategyParams) (Strategy, error) {
	if p.Config.TokenSecret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if p.Config.UsesDefaultTokenSecret() {
		p.Logger.Warn("bearer tokens are verified with the development secret; set TOKEN_SECRET")
	}
	return NewHMACStrategy(p.Config.TokenSecret, Options{TTL: p.Config.TokenTTL}), nil
}
