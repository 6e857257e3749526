package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfelder/turnstile/internal/config"
	"github.com/mfelder/turnstile/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show turnstile status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("turnstile %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Gateway: port=%d bind=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind)
			fmt.Printf("Session: store=%s scope=%s\n", cfg.Session.Store, cfg.Session.Scope)
			fmt.Printf("Policy:  askMode=%s exec=%s safeBins=%s\n",
				cfg.Policy.AskMode, cfg.Policy.Exec.Security, strings.Join(cfg.Policy.Exec.SafeBins, ","))

			if len(cfg.Models.Providers) > 0 {
				names := make([]string, 0, len(cfg.Models.Providers))
				for name := range cfg.Models.Providers {
					names = append(names, name)
				}
				fmt.Printf("Models:  %s\n", strings.Join(names, ", "))
			} else {
				fmt.Println("Models:  (none configured)")
			}

			if len(cfg.Agents.List) > 0 {
				for _, a := range cfg.Agents.List {
					resolved := cfg.AgentByID(a.ID)
					fmt.Printf("Agent:   id=%s name=%s model=%s\n", resolved.ID, resolved.Name, resolved.Model)
				}
			} else {
				fmt.Println("Agent:   (default)")
			}

			if cfg.Channels.IRC != nil {
				irc := cfg.Channels.IRC
				fmt.Printf("IRC:     server=%s nick=%s channels=%s tls=%v\n",
					irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
			} else {
				fmt.Println("IRC:     (not configured)")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}
}
