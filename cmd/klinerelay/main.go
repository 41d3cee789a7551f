package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"klinerelay/internal/infrastructure/config"
	"klinerelay/internal/infrastructure/logger"
	"klinerelay/internal/infrastructure/svc"

	"github.com/rs/zerolog/log"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize service context failed")
	}
	defer func() {
		if err := sc.Close(); err != nil {
			log.Error().Err(err).Msg("close service context failed")
		}
	}()

	log.Info().
		Str("config", *configPath).
		Str("exchange", cfg.Stream.Exchange).
		Str("symbol", cfg.Stream.Symbol).
		Str("interval", cfg.Stream.Interval).
		Str("agent", cfg.Agent.BaseURL).
		Str("http_addr", cfg.App.HTTPAddr).
		Bool("discard_stale_decisions", cfg.DiscardStaleDecisions()).
		Msg("klinerelay started")

	if err := sc.Run(ctx); err != nil {
		log.Error().Err(err).Msg("relay service exited")
	}
}
