package config

import (
	"log/slog"

	"go.uber.org/fx"
)

// Module exposes configuration loader for fx graphs and logs the redacted result.
var Module = fx.Options(
	fx.Provide(Load),
	fx.Invoke(logLoaded),
)

func logLoaded(cfg *Config, logger *slog.Logger) {
	logger.Info("configuration loaded", slog.Any("config", cfg))
}
