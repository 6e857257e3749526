package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfelder/turnstile/internal/agent"
	"github.com/mfelder/turnstile/internal/config"
	"github.com/mfelder/turnstile/internal/domain"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send and manage messages",
	}

	cmd.AddCommand(newMessageSendCmd())
	return cmd
}

func newMessageSendCmd() *cobra.Command {
	var (
		model   string
		agentID string
		peerID  string
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message to the agent and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			if agentID == "" {
				agentID = cfg.DefaultAgent().ID
			}
			if model != "" {
				for i := range cfg.Agents.List {
					if cfg.Agents.List[i].ID == agentID {
						cfg.Agents.List[i].Model = model
					}
				}
				cfg.Agents.Defaults.Model = model
			}

			st, err := buildStack(cfg, paths, true, log)
			if err != nil {
				return err
			}
			defer st.Close()

			if len(st.providers.List()) == 0 {
				return fmt.Errorf("no model providers available")
			}

			key := domain.SessionKey{
				AgentID:  agentID,
				Channel:  "cli",
				PeerType: domain.PeerDM,
				PeerID:   peerID,
			}
			if err := key.Validate(); err != nil {
				return err
			}

			handle := st.scheduler.Start(agent.Request{Key: key, Text: message})

			var failure string
			for ev := range handle.Events {
				switch e := ev.(type) {
				case agent.Delta:
					fmt.Print(e.Text)
				case agent.ToolStart:
					fmt.Fprintf(cmd.ErrOrStderr(), "\n[tool %s running]\n", e.Tool)
				case agent.Lifecycle:
					if e.Phase == agent.PhaseError {
						failure = e.Message
					}
				}
			}
			fmt.Println()

			if failure != "" {
				return fmt.Errorf("run failed: %s", failure)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model ref to use (provider/model)")
	cmd.Flags().StringVar(&agentID, "agent", "", "agent ID to use")
	cmd.Flags().StringVar(&peerID, "peer", "user", "peer id for the session key")

	return cmd
}
