// Package main provides a CLI for seeding a session store from a Lua
// scenario script.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/emberwake.world/internal/platform/config"
	"github.com/louisbranch/emberwake.world/internal/platform/otel"

	seedcmd "github.com/louisbranch/emberwake.world/internal/cmd/seed"
)

func main() {
	cfg, err := seedcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "emberwake-seed")
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	defer shutdown(context.Background())

	if err := seedcmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
