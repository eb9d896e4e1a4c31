package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"imageupdater/internal/tui"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the interactive terminal console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		authenticated := a.state.Authenticated(time.Now())
		if authenticated {
			if err := a.restore(cmd.Context(), true); err != nil {
				a.log.Warn("Could not restore previous session: %v", err)
			}
		}

		m := tui.New(tui.Config{
			Title:         a.host.Title(),
			Console:       a.console,
			Authenticated: authenticated,
			Login: func(ctx context.Context, password string) error {
				s, err := a.client.Login(ctx, password)
				if err != nil {
					return err
				}
				a.state.Token = s.Token
				a.state.ExpiresAt = s.ExpiresAt
				return a.store.Save(a.state)
			},
			Changed: func() {
				if err := a.save(); err != nil {
					a.log.Warn("Failed to save session: %v", err)
				}
			},
			DownloadDir:  dirFlag,
			PollInterval: intervalFlag,
		})

		_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	},
}

func init() {
	consoleCmd.Flags().StringVar(&dirFlag, "dir", ".", "Directory CSV templates are written to")
	consoleCmd.Flags().DurationVar(&intervalFlag, "interval", 2*time.Second, "Polling interval while an operation is processing")
}
