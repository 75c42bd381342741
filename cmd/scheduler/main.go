package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dafibh/fortuna/fortuna-engine/internal/config"
	"github.com/dafibh/fortuna/fortuna-engine/internal/trigger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	once := flag.Bool("once", false, "trigger a single run and exit")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.LoadScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	client := trigger.NewClient(cfg.TriggerURL, cfg.CronSecret, trigger.DefaultTimeout, log.Logger)
	fire := trigger.TriggerFunc(func(ctx context.Context) error {
		_, err := client.Trigger(ctx)
		return err
	})

	scheduler, err := trigger.NewScheduler(cfg.Schedule, fire, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := scheduler.RunOnce(ctx); err != nil {
			log.Fatal().Err(err).Msg("Trigger failed")
		}
		return
	}

	scheduler.Start(ctx)
	log.Info().Str("url", cfg.TriggerURL).Msg("Scheduler running")

	<-ctx.Done()
	scheduler.Stop()
	log.Info().Msg("Scheduler exited")
}
