// Package seed implements the seed command: it runs a Lua scenario
// script against a fresh session, persisting the resulting turns,
// deltas and snapshot.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/caarlos0/env/v11"

	"github.com/louisbranch/emberwake.world/internal/narrative"
	"github.com/louisbranch/emberwake.world/internal/scenario"
	"github.com/louisbranch/emberwake.world/internal/session"
	"github.com/louisbranch/emberwake.world/internal/storage/sqlite"
	"github.com/louisbranch/emberwake.world/internal/telemetry"
)

// Config holds seed command configuration.
type Config struct {
	StoragePath string `env:"EMBERWAKE_STORAGE_PATH"  envDefault:"emberwake.db"`
	Scenario    string `env:"EMBERWAKE_SCENARIO_FILE"`
	SessionID   string `env:"EMBERWAKE_SESSION_ID"`
	Seed        int64  `env:"EMBERWAKE_SEED"`
	Narrate     bool   `env:"EMBERWAKE_SEED_NARRATE" envDefault:"true"`
	Verbose     bool   `env:"EMBERWAKE_SEED_VERBOSE"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "path to the session sqlite database")
	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
	fs.StringVar(&cfg.SessionID, "session", cfg.SessionID, "session id (empty generates one)")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 uses the scenario's, then a fresh one)")
	fs.BoolVar(&cfg.Narrate, "narrate", cfg.Narrate, "append template narration to each turn")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}
	logger := log.New(errOut, "[SEED] ", log.LstdFlags)

	sc, err := scenario.LoadFile(cfg.Scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = sc.Seed
	}

	store, err := sqlite.Open(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	sessionCfg := session.Config{
		SessionID: cfg.SessionID,
		Seed:      seed,
		Store:     store,
		Emitter:   telemetry.NewEmitter(store),
	}
	if cfg.Narrate {
		sessionCfg.Narrator = narrative.TemplateNarrator{}
	}
	svc, err := session.New(sessionCfg)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if cfg.Verbose {
		logger.Printf("running scenario %q with seed %d", sc.Name, svc.Seed())
	}
	if err := scenario.Run(ctx, svc, sc); err != nil {
		return fmt.Errorf("run scenario: %w", err)
	}

	last, err := store.LastTurnID(ctx, svc.SessionID())
	if err != nil {
		return fmt.Errorf("last turn id: %w", err)
	}
	logger.Printf("seeded session %s: %d turns, scenario %q", svc.SessionID(), last, sc.Name)
	fmt.Fprintln(out, svc.SessionID())
	return nil
}
