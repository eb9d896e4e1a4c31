package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var passwordFlag string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange the gate password for a session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		password := passwordFlag
		if password == "" {
			password = os.Getenv("PIU_PASSWORD")
		}
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimSpace(line)
		}

		s, err := a.client.Login(cmd.Context(), password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		a.state.Token = s.Token
		a.state.ExpiresAt = s.ExpiresAt
		if err := a.store.Save(a.state); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s until %s\n", a.host.Title(), s.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session and forget all local state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		if err := a.client.Logout(cmd.Context()); err != nil {
			a.log.Warn("Server logout failed: %v", err)
		}
		if err := a.store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&passwordFlag, "password", "p", "", "Gate password (defaults to $PIU_PASSWORD, then a prompt)")
}
