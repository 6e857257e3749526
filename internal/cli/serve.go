package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfelder/turnstile/internal/channel"
	"github.com/mfelder/turnstile/internal/channel/irc"
	"github.com/mfelder/turnstile/internal/config"
	"github.com/mfelder/turnstile/internal/gateway"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server and configured channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			st, err := buildStack(cfg, paths, false, log)
			if err != nil {
				return err
			}
			defer st.Close()

			if providers := st.providers.List(); len(providers) > 0 {
				log.Info().Strs("providers", providers).Msg("model providers available")
			} else {
				log.Warn().Msg("no model providers found — runs will fail at resolution")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			channels := channel.NewRegistry(log)
			if cfg.Channels.IRC != nil {
				channels.Register(irc.New(*cfg.Channels.IRC, log))
			}

			if channels.Count() > 0 {
				dispatcher := channel.NewDispatcher(
					st.agent.ID,
					channel.Scope(cfg.Session.Scope),
					st.scheduler,
					log,
				)
				if ircCh, ok := channels.Get("irc"); ok {
					dispatcher.Attach(ircCh)
				}
				channels.StartAll(ctx)
				defer channels.StopAll(context.Background())
				log.Info().Int("channels", channels.Count()).Str("scope", cfg.Session.Scope).Msg("message routing active")
			}

			srv := gateway.New(cfg.Gateway, st.agent.ID, st.scheduler, st.repo, log)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
