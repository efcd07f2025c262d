package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/darkroom/internal/protocol"
)

// RegisterData is the register command's payload.
type RegisterData struct {
	Registered []RegisteredProtocol `json:"registered"`
}

// RegisteredProtocol is one registered definition's summary.
type RegisteredProtocol struct {
	Name           string `json:"name"`
	Kind           string `json:"metric_kind"`
	DefinitionHash string `json:"definition_hash"`
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <protocols-dir>",
		Short: "Register protocol definitions from CUE files",
		Long: `Load protocol definitions from the CUE files in a directory and append
them to the registry. Each definition gets a content hash over its name,
kind, and parameters. Registration is only possible while COLLECTING; the
set freezes at seal time.

Example:
  darkroom register ./protocols`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runRegister(opts *RootOptions, cmd *cobra.Command, dir string) error {
	defs, err := protocol.LoadDefinitions(dir)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load protocol definitions", err)
	}

	env, cleanup, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	data := RegisterData{}
	for _, def := range defs {
		registered, err := env.registry.Register(ctx, def)
		if errors.Is(err, protocol.ErrProtocolLocked) {
			return WrapExitError(ExitFailure, "registry is frozen", err)
		}
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to register %q", def.Name), err)
		}
		data.Registered = append(data.Registered, RegisteredProtocol{
			Name:           registered.Name,
			Kind:           string(registered.Kind),
			DefinitionHash: registered.DefinitionHash,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Registered %d protocol(s):\n", len(data.Registered))
	for _, p := range data.Registered {
		fmt.Fprintf(&b, "  %-28s %-24s %s\n", p.Name, p.Kind, shortHash(p.DefinitionHash))
	}
	return newFormatter(opts, cmd).SuccessText(b.String(), data)
}
