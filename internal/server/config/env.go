package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// dotenvFile is loaded into the process environment before parsing, if present.
var dotenvFile = ".env"

// parseEnv overlays environment variables onto config. Variables already
// set in the environment win over the .env file. Unset variables leave the
// current value untouched.
func parseEnv(config *Config) {
	_ = godotenv.Load(dotenvFile)

	if err := env.Parse(config); err != nil {
		panic(fmt.Errorf("parse env: %w", err))
	}
}
