package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/vidauth/internal/flagx"
	"github.com/dmitrijs2005/vidauth/internal/timex"
)

// JsonConfig mirrors Config for unmarshalling; durations accept "10s" or
// integer nanoseconds.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	GRPCAddr       string         `json:"grpc_addr"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	SessionDB      string         `json:"session_db"`
}

// parseJson overlays cfg with the non-empty values of the file named by
// -c/-config or VIDAUTH_CLIENT_CONFIG. It panics on unreadable files.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:], "VIDAUTH_CLIENT_CONFIG")
	if path == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.GRPCAddr != "" {
		cfg.GRPCAddr = jc.GRPCAddr
	}
	if jc.SessionDB != "" {
		cfg.SessionDB = jc.SessionDB
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
}
