package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfelder/turnstile/internal/config"
	"github.com/mfelder/turnstile/internal/store"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored conversation sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeRepo, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepo()

			entries, err := repo.ListAll()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No sessions.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %-40s  msgs=%-4d  updated=%s\n",
					shortID(e.SessionID), e.Key, e.MessageCount, e.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print a session's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeRepo, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepo()

			sess, err := repo.FindByID(args[0])
			if err != nil {
				return err
			}
			if sess == nil {
				return fmt.Errorf("session %s not found", args[0])
			}

			fmt.Printf("Session %s (%s)\n", sess.ID, sess.Key.String())
			for _, sum := range sess.Summaries {
				fmt.Printf("  [summary %d-%d] %s\n", sum.MessageRangeStart, sum.MessageRangeEnd, sum.SummaryText)
			}
			for _, m := range sess.Messages {
				fmt.Printf("  %-9s %s\n", m.Role, m.Content)
			}
			return nil
		},
	}
}

// shortID abbreviates a session id for list output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// openRepository opens the configured session store for read-only commands.
func openRepository() (store.SessionRepository, func(), error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		cfg = config.Defaults()
	}

	if cfg.Session.Store != "sqlite" {
		return store.NewMemoryRepository(), func() {}, nil
	}

	db, err := store.Open(paths.SessionDBPath(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return store.NewSQLiteRepository(db, compactionFromConfig(cfg.Session)), func() { db.Close() }, nil
}
