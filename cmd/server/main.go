package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nfrund/batepapo/internal/app"
	"github.com/nfrund/batepapo/internal/config"
	"github.com/nfrund/batepapo/internal/logging"
	"github.com/nfrund/batepapo/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "batepapo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New()

	cfg, err := config.New()
	if err != nil {
		return err
	}

	deps, err := app.Resolve(app.NewContainer(ctx, cfg, logger))
	if err != nil {
		return err
	}

	s := server.New(deps)
	s.RegisterRoutes()
	return s.Start(ctx)
}
