package validatord

import (
	"log/slog"
	"os"
	"strconv"
)

const (
	defaultPort         = 5051
	defaultMaxBodyBytes = 1 << 20
)

// Config controls the validator service.
type Config struct {
	// Addr is the listen address, ":5051" when empty.
	Addr string
	// MaxBodyBytes caps request bodies, 1 MiB when zero.
	MaxBodyBytes int64
	// AllowOrigin is the CORS origin, "*" when empty.
	AllowOrigin string
	Log         *slog.Logger
}

// FromEnv builds a Config from the environment: PORT selects the
// listen port, ALLOW_ORIGIN the CORS origin.
func FromEnv() Config {
	port := defaultPort
	if raw := os.Getenv("PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			port = p
		}
	}
	return Config{
		Addr:        ":" + strconv.Itoa(port),
		AllowOrigin: os.Getenv("ALLOW_ORIGIN"),
	}
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":" + strconv.Itoa(defaultPort)
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.AllowOrigin == "" {
		c.AllowOrigin = "*"
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	return c
}
