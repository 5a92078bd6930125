package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/vidauth/internal/flagx"
)

// parseFlags populates selected client Config fields from command-line
// flags:
//
//	-a string   base URL of the HTTP API
//	-g string   address of the gRPC introspection endpoint
//	-t int      request timeout in seconds
//	-s string   session database file ("" disables saving)
//
// Other arguments, including the JSON -c flag, are dropped by
// flagx.FilterArgs before parsing. A malformed value panics.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-t", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the vidauth HTTP API")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "address of the vidauth gRPC endpoint")
	fs.StringVar(&cfg.SessionDB, "s", cfg.SessionDB, "session database file")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
