package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dropline/relay-bot/internal/bot"
	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/config"
	"github.com/dropline/relay-bot/internal/db"
	"github.com/dropline/relay-bot/internal/digest"
	"github.com/dropline/relay-bot/internal/service"
	"github.com/dropline/relay-bot/internal/telemetry"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	store, err := db.New(cfg.DBPath, cfg.Location)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("could not open database")
	}
	defer store.Close()

	for _, id := range cfg.AllowedIDs {
		if err := store.AllowUser(id); err != nil {
			log.Fatal().Err(err).Int64("user", id).Msg("could not seed allow-list")
		}
	}

	tg, err := channel.NewTelegram(cfg.BotToken, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to telegram")
	}

	svc := service.New(store, tg, cfg.Location, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ReportUser != 0 {
		sched := digest.New(store, tg, cfg.Location, cfg.ReportTime, cfg.ReportUser, log)
		go sched.Run(ctx)
	} else {
		log.Warn().Msg("REPORT_USER_ID not set, daily digest disabled")
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(telemetry.NewRegistry(), promhttp.HandlerOpts{}))
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listener started")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	log.Info().Msg("bot started")
	if err := bot.New(tg, store, svc, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("shut down")
}
