package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/tabkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/tabkeeper/internal/client/cli"
	"github.com/dmitrijs2005/tabkeeper/internal/client/config"
	"github.com/dmitrijs2005/tabkeeper/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, log, os.Stdin, os.Stdout)
	if err != nil {
		log.Error(ctx, "failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			log.Error(ctx, "shutdown error", "error", err)
		}
	}()

	app.Run(ctx)
}
