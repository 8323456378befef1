package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtavish/conclave/internal/config"
	"github.com/mtavish/conclave/internal/mailbox"
	"github.com/mtavish/conclave/internal/roster"
	"github.com/mtavish/conclave/internal/session"
	"github.com/mtavish/conclave/internal/shim"
	"github.com/mtavish/conclave/internal/tmux"
)

func initCmd() *cobra.Command {
	var (
		flagConfig    string
		flagRepo      string
		flagWorktrees bool
	)

	cmd := &cobra.Command{
		Use:   "init <session-name>",
		Short: "Initialize a session from a named roster configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.ResolveRoot(flagRoot)
			if err != nil {
				return err
			}
			if err := config.InitConclaveDir(root); err != nil {
				return err
			}
			cfg, err := config.NewConfig(root)
			if err != nil {
				return err
			}

			repo := flagRepo
			if repo == "" {
				repo = root
			}
			worktrees := cfg.Project.Worktrees
			if cmd.Flags().Changed("worktrees") {
				worktrees = flagWorktrees
			}

			meta, err := session.NewInitializer(cfg).Initialize(flagConfig, args[0], repo, worktrees)
			if err != nil {
				return err
			}

			fmt.Printf("Session %s initialized: %d agents from config %q\n", meta.Name, meta.AgentCount, meta.Config)
			fmt.Printf("  store: %s\n", cfg.SessionDir(meta.Name))
			fmt.Printf("  repo:  %s (worktrees=%t)\n", meta.RepoPath, meta.Worktrees)
			fmt.Printf("Run `conclave open %s` to lay the agents out in tmux.\n", meta.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagConfig, "config", "default", "Roster configuration name under .conclave/configs")
	cmd.Flags().StringVar(&flagRepo, "repo", "", "Repository the agents work on (default: project root)")
	cmd.Flags().BoolVar(&flagWorktrees, "worktrees", false, "Allocate one git worktree per agent with a branch")

	return cmd
}

func openCmd() *cobra.Command {
	var flagNoAttach bool

	cmd := &cobra.Command{
		Use:   "open <session-name>",
		Short: "Build the tmux window layout for an initialized session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, args[0])
			if err != nil {
				return err
			}
			meta, err := store.ReadSession()
			if err != nil {
				return err
			}
			plan, err := store.ReadLayout()
			if err != nil {
				return err
			}

			client := tmux.NewClient()
			if !tmux.Available() {
				return fmt.Errorf("tmux not found on PATH")
			}
			env := map[string]string{
				config.RootEnv:      cfg.ProjectDir,
				shim.EnvSessionName: meta.Name,
				shim.EnvSessionDir:  store.Handle().Dir,
			}
			if err := client.Apply(meta.Name, plan, env); err != nil {
				return err
			}
			fmt.Printf("tmux session %s created: %d window(s)\n", meta.Name, len(plan.Tabs))

			if flagNoAttach || tmux.InsideTmux() {
				fmt.Printf("Attach with: tmux attach-session -t %s\n", meta.Name)
				return nil
			}
			return attachTmux(meta.Name)
		},
	}

	cmd.Flags().BoolVar(&flagNoAttach, "no-attach", false, "Create the layout without attaching to it")

	return cmd
}

// attachTmux hands the terminal to tmux for an existing session.
func attachTmux(sessionName string) error {
	attach := exec.Command("tmux", "attach-session", "-t", sessionName)
	attach.Stdin = os.Stdin
	attach.Stdout = os.Stdout
	attach.Stderr = os.Stderr
	return attach.Run()
}

func destroyCmd() *cobra.Command {
	var flagForce bool

	cmd := &cobra.Command{
		Use:   "destroy <session-name>",
		Short: "Remove a session store and kill its tmux session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, args[0])
			if err != nil {
				return err
			}
			if !flagForce {
				return fmt.Errorf("destroy removes %s permanently; rerun with --force", store.Handle().Dir)
			}

			if tmux.Available() {
				client := tmux.NewClient()
				if exists, err := client.HasSession(args[0]); err == nil && exists {
					if err := client.KillSession(args[0]); err != nil {
						fmt.Fprintf(os.Stderr, "warning: kill tmux session: %v\n", err)
					}
				}
			}
			if err := store.Destroy(); err != nil {
				return err
			}
			fmt.Printf("Session %s destroyed.\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagForce, "force", false, "Actually remove the session store")

	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-name...]",
		Short: "Validate roster configurations without touching any session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			paths := make([]string, 0, len(args))
			if len(args) > 0 {
				for _, name := range args {
					paths = append(paths, cfg.RosterPath(name))
				}
			} else {
				matches, err := filepath.Glob(filepath.Join(cfg.ConfigsDir(), "*.yaml"))
				if err != nil {
					return err
				}
				paths = matches
			}
			if len(paths) == 0 {
				return fmt.Errorf("no roster configurations under %s", cfg.ConfigsDir())
			}

			invalid := 0
			for _, path := range paths {
				report, err := roster.ValidateFile(path)
				if err != nil {
					invalid++
					fmt.Printf("✗ %s: %v\n", filepath.Base(path), err)
					continue
				}
				if report.IsValid() {
					fmt.Printf("✓ %s: %d agent(s)\n", filepath.Base(path), report.Agents)
					continue
				}
				invalid++
				fmt.Printf("✗ %s: %d violation(s)\n", filepath.Base(path), len(report.Errors))
				for _, violation := range report.Errors {
					fmt.Printf("    %v\n", violation)
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d configuration(s) invalid", invalid, len(paths))
			}
			return nil
		},
	}

	return cmd
}

func awaitCmd() *cobra.Command {
	var (
		flagInterval time.Duration
		flagTimeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "await [session-name]",
		Short: "Block until every agent in the session is complete or stopped",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			name, err := resolveSessionName(args)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, name)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if flagTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, flagTimeout)
				defer cancel()
			}

			if err := session.AwaitCompletion(ctx, store, flagInterval); err != nil {
				return err
			}
			fmt.Printf("Session %s settled: all agents complete or stopped.\n", name)

			meta, err := store.ReadSession()
			if err != nil {
				return err
			}
			box := mailbox.New(store.Handle())
			for id := 1; id <= meta.AgentCount; id++ {
				record, err := box.ReadResponse(id)
				if err != nil || record == nil {
					continue
				}
				fmt.Printf("  [%d] %s (%s): %s\n", id, record.From, record.Status, record.Summary)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&flagInterval, "interval", session.DefaultAwaitInterval, "Poll interval")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "Give up after this long (0 waits forever)")

	return cmd
}
