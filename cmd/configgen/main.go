package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/edgemgmt/internal/config"
	"github.com/danmuck/edgemgmt/internal/logging"
)

func main() {
	logging.ConfigureRuntime()
	output := flag.String("out", "edgectl.toml", "output path for the client config template")
	validate := flag.Bool("validate", false, "validate an existing config file instead of writing one")
	input := flag.String("input", "", "config path for validation (defaults to -out)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = *output
		}
		if _, err := config.Load(path); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("config invalid")
		}
		log.Info().Str("path", path).Msg("config valid")
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal().Err(err).Msg("write template")
	}
	log.Info().Str("path", *output).Msg("wrote client config template")
}
