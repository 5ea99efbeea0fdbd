package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/cm8me/shortener/internal/app"
	"github.com/cm8me/shortener/internal/config"
	"github.com/cm8me/shortener/internal/logger"
)

func writeHeapProfile(path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to create heap profile")
		return
	}
	defer f.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Error().Err(err).Msg("Failed to write heap profile")
	}
}

func main() {
	memprofile := os.Getenv("MEMPROFILE")

	cfg, err := config.NewConfig()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	runErr := application.Run(ctx)

	if memprofile != "" {
		writeHeapProfile(memprofile)
	}

	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Error running application")
	}
}
