// migrate applies the Postgres session store schema from embedded SQL (SESSION_STORE=postgres).
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"fxstreampro/client/internal/config"
	"fxstreampro/client/internal/db/migrate"
	"fxstreampro/client/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	status := flag.Bool("status", false, "Print the applied schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, os.Stderr)

	if *status {
		version, dirty, ok, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("migrate: version")
		}
		if !ok {
			log.Info().Msg("migrate: no migrations applied")
			return
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrate: status")
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migrate")
	}
	log.Info().Str("direction", *direction).Msg("migrate: done")
}
