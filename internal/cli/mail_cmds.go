package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mtavish/conclave/internal/config"
	"github.com/mtavish/conclave/internal/mailbox"
	"github.com/mtavish/conclave/internal/tools"
)

func newToolServer(cfg *config.Config, sessionName string, asID int) (*tools.Server, error) {
	store, err := openStore(cfg, sessionName)
	if err != nil {
		return nil, err
	}
	actorName := "orchestrator"
	if asID != 0 {
		r, err := store.ReadRoster()
		if err != nil {
			return nil, err
		}
		def, ok := r.FindByID(asID)
		if !ok {
			return nil, fmt.Errorf("agent id %d not in the session roster", asID)
		}
		actorName = def.Name
	}
	box := mailbox.New(store.Handle())
	return tools.NewServer(store, box, asID, actorName), nil
}

// printResult writes the tool outcome and turns failures into exit
// status without duplicating the message.
func printResult(result tools.Result) error {
	fmt.Println(result.Message)
	if !result.OK {
		return fmt.Errorf("%s", result.Kind)
	}
	return nil
}

func agentsCmd() *cobra.Command {
	var flagAs int

	cmd := &cobra.Command{
		Use:   "agents [session-name]",
		Short: "List the session's agents with their current statuses",
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
			server, err := newToolServer(cfg, name, flagAs)
			if err != nil {
				return err
			}
			return printResult(server.ListAgents())
		},
	}

	cmd.Flags().IntVar(&flagAs, "as", 0, "Act as this agent id (0 is the orchestrator)")

	return cmd
}

func sendCmd() *cobra.Command {
	var (
		flagAs       int
		flagTo       string
		flagMessage  string
		flagPriority string
		flagSession  string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Deliver a message to an agent's mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			name, err := resolveSessionName(sessionArgs(flagSession))
			if err != nil {
				return err
			}
			server, err := newToolServer(cfg, name, flagAs)
			if err != nil {
				return err
			}
			return printResult(server.SendQuery(flagTo, flagMessage, flagPriority))
		},
	}

	cmd.Flags().IntVar(&flagAs, "as", 0, "Act as this agent id (0 is the orchestrator)")
	cmd.Flags().StringVar(&flagTo, "to", "", "Recipient agent id or name")
	cmd.Flags().StringVar(&flagMessage, "message", "", "Message body")
	cmd.Flags().StringVar(&flagPriority, "priority", "", "low, normal, or high (default normal)")
	cmd.Flags().StringVar(&flagSession, "session", "", "Session name (default: $CONCLAVE_SESSION)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func checkCmd() *cobra.Command {
	var (
		flagAs      int
		flagSession string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Consume the acting agent's pending message, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			name, err := resolveSessionName(sessionArgs(flagSession))
			if err != nil {
				return err
			}
			server, err := newToolServer(cfg, name, flagAs)
			if err != nil {
				return err
			}
			return printResult(server.CheckQueries())
		},
	}

	cmd.Flags().IntVar(&flagAs, "as", 0, "Act as this agent id (0 is the orchestrator)")
	cmd.Flags().StringVar(&flagSession, "session", "", "Session name (default: $CONCLAVE_SESSION)")

	return cmd
}

func completeCmd() *cobra.Command {
	var (
		flagAs      int
		flagSummary string
		flagSession string
	)

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Mark the acting agent complete and record its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			name, err := resolveSessionName(sessionArgs(flagSession))
			if err != nil {
				return err
			}
			server, err := newToolServer(cfg, name, flagAs)
			if err != nil {
				return err
			}
			return printResult(server.MarkComplete(flagSummary))
		},
	}

	cmd.Flags().IntVar(&flagAs, "as", 0, "Act as this agent id (0 is the orchestrator)")
	cmd.Flags().StringVar(&flagSummary, "summary", "", "What the agent finished")
	cmd.Flags().StringVar(&flagSession, "session", "", "Session name (default: $CONCLAVE_SESSION)")
	_ = cmd.MarkFlagRequired("summary")

	return cmd
}

func sessionArgs(flagSession string) []string {
	if flagSession == "" {
		return nil
	}
	return []string{flagSession}
}
