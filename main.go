package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kazuph/tab-transfer/cmd"
	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/logger"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	if err := logger.Init(logger.DefaultConfig()); err != nil {
		log.Warn().Err(err).Msg("failed to initialize logger")
	}

	os.Exit(cmd.Execute())
}
