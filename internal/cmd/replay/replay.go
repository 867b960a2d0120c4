// Package replay implements the replay command: it folds a session's
// persisted delta log into a fresh state tree and prints the result.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/caarlos0/env/v11"

	statereplay "github.com/louisbranch/emberwake.world/internal/state/replay"
	"github.com/louisbranch/emberwake.world/internal/state/world"
	"github.com/louisbranch/emberwake.world/internal/storage"
	"github.com/louisbranch/emberwake.world/internal/storage/sqlite"
)

// Config holds replay command configuration.
type Config struct {
	StoragePath string `env:"EMBERWAKE_STORAGE_PATH" envDefault:"emberwake.db"`
	SessionID   string `env:"EMBERWAKE_SESSION_ID"`
	UntilTurn   uint64 `env:"EMBERWAKE_REPLAY_UNTIL_TURN"`
	PageSize    int    `env:"EMBERWAKE_REPLAY_PAGE_SIZE" envDefault:"200"`
	Verify      bool   `env:"EMBERWAKE_REPLAY_VERIFY"    envDefault:"true"`
	Verbose     bool   `env:"EMBERWAKE_REPLAY_VERBOSE"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "path to the session sqlite database")
	fs.StringVar(&cfg.SessionID, "session", cfg.SessionID, "session id to replay")
	fs.Uint64Var(&cfg.UntilTurn, "until-turn", cfg.UntilTurn, "stop after this turn (0 replays everything)")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "deltas per store read")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "compare the result against the stored snapshot")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the replay command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.SessionID == "" {
		return errors.New("session id is required")
	}
	logger := log.New(errOut, "[REPLAY] ", log.LstdFlags)

	store, err := sqlite.Open(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	state := world.NewState()
	result, err := statereplay.Replay(ctx, store, cfg.SessionID, state, statereplay.Options{
		UntilTurn: cfg.UntilTurn,
		PageSize:  cfg.PageSize,
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if cfg.Verbose {
		logger.Printf("applied %d deltas through turn %d", result.Applied, result.LastTurn)
	}

	if cfg.Verify && cfg.UntilTurn == 0 {
		if err := verifySnapshot(ctx, store, cfg.SessionID, state, logger); err != nil {
			return err
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return nil
}

// verifySnapshot compares the replayed tree against the stored snapshot.
// A missing snapshot is fine; a divergent one is reported but does not
// fail the replay, because the delta log is the authority.
func verifySnapshot(ctx context.Context, store *sqlite.Store, sessionID string, state *world.State, logger *log.Logger) error {
	snap, err := store.GetSnapshot(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Printf("no snapshot to verify against")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	replayed, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode replayed state: %w", err)
	}
	stored, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("encode snapshot state: %w", err)
	}
	if string(replayed) != string(stored) {
		logger.Printf("snapshot diverges from the delta log; the log is authoritative")
		return nil
	}
	logger.Printf("snapshot matches the delta log at turn %d", snap.LastTurn)
	return nil
}
