package mpesa

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/marketplace/internal/config"
)

// Module exposes the gateway client and connectivity prober to the fx graph.
var Module = fx.Provide(newClient, newProber)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(p.Config.Mpesa, p.Logger.With("component", "mpesa"))
}

func newProber(cfg *config.Config) (Prober, error) {
	return NewNetProber(cfg.Mpesa)
}
