// Package config loads settings for the vidauth command-line client:
// defaults, then an optional JSON file (-c/-config), then flags.
package config

import "time"

// Config holds runtime settings for the CLI client.
type Config struct {
	ServerURL      string
	GRPCAddr       string
	RequestTimeout time.Duration
	// SessionDB is the SQLite file holding the saved session. Empty keeps
	// the session in memory only.
	SessionDB string
}

// LoadDefaults points the client at a local server.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.GRPCAddr = "127.0.0.1:50051"
	c.RequestTimeout = 10 * time.Second
	c.SessionDB = "vidauth-session.db"
}

// LoadConfig applies defaults, JSON and flags in that order.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
