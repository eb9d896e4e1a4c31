package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// CLI flags
var (
	launchURLFlag string
)

var current *app

// rootCmd is the main Cobra command for the piu CLI.
var rootCmd = &cobra.Command{
	Use:   "piu",
	Short: "Bulk-update Shopify product images through a CSV round trip",
	Long: `piu searches collections, selects products and runs image update
operations against the image updater backend.

A typical run:
  piu login
  piu collections search summer
  piu products gid://shopify/Collection/7
  piu select all
  piu op create
  piu op download
  # edit the New Image URL column
  piu op upload image-updates-<id>.csv
  piu op process --wait

State (session token, loaded collection, selection and the current
operation) is kept in the session file between invocations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(launchURLFlag)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		return current.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&launchURLFlag, "launch-url", os.Getenv("PIU_LAUNCH_URL"), "URL the Shopify admin opened the app with (enables embedded mode)")

	rootCmd.AddCommand(loginCmd, logoutCmd)
	rootCmd.AddCommand(collectionsCmd, productsCmd, selectCmd)
	rootCmd.AddCommand(opCmd, historyCmd, rollbackCmd, repeatCmd)
	rootCmd.AddCommand(consoleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if current != nil {
			current.Close()
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
