// Package main provides a CLI for replaying a session's delta log.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/emberwake.world/internal/platform/config"
	"github.com/louisbranch/emberwake.world/internal/platform/otel"

	replaycmd "github.com/louisbranch/emberwake.world/internal/cmd/replay"
)

func main() {
	cfg, err := replaycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "emberwake-replay")
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	defer shutdown(context.Background())

	if err := replaycmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
