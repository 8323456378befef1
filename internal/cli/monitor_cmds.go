package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtavish/conclave/internal/monitor"
	"github.com/mtavish/conclave/internal/tui"
	"github.com/mtavish/conclave/internal/watch"
)

func monitorCmd() *cobra.Command {
	var (
		flagPlain    bool
		flagInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor [session-name]",
		Short: "Live board of agent statuses for one session",
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

			if flagPlain {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				m := monitor.New(store)
				m.Interval = flagInterval
				if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			return tui.Run(store, tui.WithInterval(flagInterval))
		},
	}

	cmd.Flags().BoolVar(&flagPlain, "plain", false, "Print the board to stdout instead of the interactive view")
	cmd.Flags().DurationVar(&flagInterval, "interval", monitor.DefaultInterval, "Refresh interval")

	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [session-name]",
		Short: "One-shot snapshot of the session board",
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
			meta, err := store.ReadSession()
			if err != nil {
				return err
			}
			fmt.Println(monitor.New(store).Render(meta))
			return nil
		},
	}

	return cmd
}

func watchCmd() *cobra.Command {
	var flagDebounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [session-name]",
		Short: "Stream debounced session-store change events",
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

			w, err := watch.New(store.Handle(), watch.WithDebounce(flagDebounce))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				for event := range w.Events() {
					fmt.Printf("%s %-8s %s\n", time.Now().UTC().Format(time.RFC3339), event.Kind, event.Path)
				}
			}()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&flagDebounce, "debounce", watch.DefaultDebounce, "Collapse repeated events within this window")

	return cmd
}
