// Command dagforge-validatord serves the DAG validation API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dagforge/dagforge-go/validatord"
)

func main() {
	// .env is optional; deployments usually set the environment directly.
	_ = godotenv.Load()

	cfg := validatord.FromEnv()
	addr := flag.String("addr", cfg.Addr, "listen address")
	origin := flag.String("allow-origin", cfg.AllowOrigin, "CORS allow origin, * when empty")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg.Addr = *addr
	cfg.AllowOrigin = *origin
	cfg.Log = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := validatord.New(cfg).ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
