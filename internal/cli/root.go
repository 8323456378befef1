// Cobra command tree for the conclave binary. Each command resolves
// the project root, loads .conclave configuration, and binds to one
// session store; the heavy lifting lives in the internal packages.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mtavish/conclave/internal/config"
	"github.com/mtavish/conclave/internal/session"
	"github.com/mtavish/conclave/internal/shim"
)

var flagRoot string

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the full conclave command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conclave",
		Short: "Coordinate a team of terminal agents over a shared session store",
		Long: `Conclave initializes multi-agent working sessions from named rosters,
lays the agents out across tmux windows, and gives every agent a
file-backed mailbox plus a coordination tool facade. All state lives
under .conclave/ in the project root.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "Project root (default: $CONCLAVE_ROOT or the working directory)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(destroyCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(awaitCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(completeCmd())

	return rootCmd
}

// loadConfig resolves the project root and loads .conclave settings.
func loadConfig() (*config.Config, error) {
	root, err := config.ResolveRoot(flagRoot)
	if err != nil {
		return nil, err
	}
	return config.NewConfig(root)
}

// resolveSessionName picks the session from the first positional
// argument, falling back to the ambient session environment set inside
// conclave-managed panes.
func resolveSessionName(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	if env := strings.TrimSpace(os.Getenv(shim.EnvSessionName)); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("session name required (pass it as an argument or run inside a conclave pane)")
}

// openStore binds a store to an existing session.
func openStore(cfg *config.Config, name string) (*session.Store, error) {
	store := session.NewStore(session.NewHandle(cfg.SessionsDir(), name))
	if !store.Exists() {
		return nil, fmt.Errorf("session %q not found under %s", name, cfg.SessionsDir())
	}
	return store, nil
}
