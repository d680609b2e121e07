package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/erikprat61/supreme-memory/internal/app"
	"github.com/erikprat61/supreme-memory/internal/capture"
	"github.com/erikprat61/supreme-memory/internal/config"
)

func main() {
	envFile := flag.String("env", ".env", "Optional file of KEY=value settings")
	listDevices := flag.Bool("list-devices", false, "Print capture device names and exit")
	flag.Parse()

	if *listDevices {
		names, err := capture.Devices()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list capture devices")
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.LoadFile(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	if err := application.Serve(ctx); err != nil {
		log.Error().Err(err).Msg("Voice monitor exited with error")
		os.Exit(1)
	}
}
