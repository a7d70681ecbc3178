package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/archetype/cmd/archetype/commands"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/telemetry"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.Execute(ctx, Version, Commit, BuildDate)
	if err == nil {
		return
	}

	ev := log.Error().Err(err)
	var ae *engine.ArchetypeError
	if errors.As(err, &ae) {
		ev = ev.Str("kind", string(ae.Kind))
	}
	if ctx.Err() != nil {
		ev.Msg("Interrupted")
	} else {
		ev.Msg("Command failed")
	}
	os.Exit(1)
}

// setupLogging configures the global zerolog logger used before the
// configuration is loaded. ARCHETYPE_LOG_LEVEL sets its level.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level, err := telemetry.ParseLevel(os.Getenv("ARCHETYPE_LOG_LEVEL"))
	if err != nil {
		log.Warn().Err(err).Msg("Using info level")
	}
	zerolog.SetGlobalLevel(level)
}
