package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/darkroom/internal/config"
	"github.com/roach88/darkroom/internal/protocol"
	"github.com/roach88/darkroom/internal/seal"
	"github.com/roach88/darkroom/internal/store"
)

// appEnv is the wired application environment shared by every command:
// config, store, seal manager (installed as the store's content gate), and
// protocol registry.
type appEnv struct {
	cfg      config.Config
	st       *store.Store
	seals    *seal.Manager
	registry *protocol.Registry
}

// openEnv loads configuration and opens the store with the seal gate
// installed. The returned cleanup closes the store.
func openEnv(opts *RootOptions) (*appEnv, func(), error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "failed to load config", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "failed to open database", err)
	}

	seals, err := seal.NewManager(st, nil)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitFailure, "failed to read seal state", err)
	}
	st.SetContentGate(seals)

	env := &appEnv{
		cfg:      cfg,
		st:       st,
		seals:    seals,
		registry: protocol.NewRegistry(st, seals),
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}
	return env, cleanup, nil
}

// newFormatter builds the output formatter for a command invocation.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
