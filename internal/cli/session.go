package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/agent-next/behavior-driven-testing/internal/engine"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
	"github.com/agent-next/behavior-driven-testing/internal/store"
)

// DatabaseEnv names the environment variable read when --db is not given.
const DatabaseEnv = "BDT_DB"

var errNoDatabase = errors.New("pass --db or set " + DatabaseEnv)

// session is an engine over a SQLite ledger, open for one command.
type session struct {
	store  *store.Store
	engine *engine.Engine
	opts   *RootOptions
}

func addDatabaseFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "db", "", "path to SQLite ledger database (default $"+DatabaseEnv+")")
}

func resolveDatabase(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if env := os.Getenv(DatabaseEnv); env != "" {
		return env, nil
	}
	return "", errNoDatabase
}

// openSession opens the ledger database and builds an engine over it.
// Errors are already reported through f.
func openSession(ctx context.Context, opts *RootOptions, f *OutputFormatter, database string, engineOpts ...engine.EngineOption) (*session, error) {
	path, err := resolveDatabase(database)
	if err != nil {
		return nil, commandError(f, "ledger database required", err)
	}
	f.VerboseLog("Opening ledger %s", path)

	st, err := store.Open(path)
	if err != nil {
		return nil, commandError(f, "failed to open database", err)
	}
	if meta, err := st.Meta(ctx); err == nil {
		opts.Logger().Debug("ledger database", "path", path,
			"schema_version", meta["schema_version"], "engine_version", meta["engine_version"])
	}

	l, err := ledger.Open(ctx, st, ledger.WithLogger(opts.Logger()))
	if err != nil {
		st.Close()
		return nil, commandError(f, "failed to open ledger", err)
	}

	engineOpts = append([]engine.EngineOption{
		engine.WithLedger(l),
		engine.WithLogger(opts.Logger()),
	}, engineOpts...)

	return &session{store: st, engine: engine.New(engineOpts...), opts: opts}, nil
}

func (s *session) ledger() *ledger.Ledger {
	return s.engine.Ledger()
}

// Close closes the ledger database and writes --metrics-file. Commands
// defer it, so the metrics of a failed record are written too.
func (s *session) Close() error {
	if path := s.opts.MetricsFile; path != "" {
		if err := ledger.WriteMetrics(path); err != nil {
			s.opts.Logger().Warn("failed to write metrics", "path", path, "error", err)
		}
	}
	return s.store.Close()
}
