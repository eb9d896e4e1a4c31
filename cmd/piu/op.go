package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"imageupdater/internal/operation"
)

var (
	dirFlag      string
	waitFlag     bool
	intervalFlag time.Duration
)

var errNoOperation = errors.New("no operation in progress, run `piu op create` first")

var opCmd = &cobra.Command{
	Use:   "op",
	Short: "Drive the current image update operation",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return current.requireLogin()
	},
}

// opCommand restores the session (with the working collection when
// withProducts is set) before fn and saves it after.
func opCommand(use, short string, args cobra.PositionalArgs, withProducts bool, fn func(cmd *cobra.Command, a *app, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current
			if err := a.restore(cmd.Context(), withProducts && a.state.CollectionID != ""); err != nil {
				return err
			}
			return saveAfter(fn(cmd, a, args), a.save)
		},
	}
}

// saveAfter persists the session whether or not the command failed, and
// reports both errors.
func saveAfter(err error, save func() error) error {
	return errors.Join(err, save())
}

func requireOperation(a *app) error {
	if a.console.Tracker().State() == operation.NoOperation {
		return errNoOperation
	}
	return nil
}

var opCreateCmd = opCommand("create", "Create an operation for the selected products", cobra.NoArgs, true,
	func(cmd *cobra.Command, a *app, args []string) error {
		if err := a.requireCollection(); err != nil {
			return err
		}
		op, err := a.console.CreateOperation(cmd.Context())
		if err != nil {
			return err
		}
		printOperation(cmd.OutOrStdout(), op)
		return nil
	})

var opStatusCmd = opCommand("status", "Refresh and show the current operation", cobra.NoArgs, false,
	func(cmd *cobra.Command, a *app, args []string) error {
		if err := requireOperation(a); err != nil {
			return err
		}
		op, err := a.console.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		printOperation(cmd.OutOrStdout(), op)
		return nil
	})

var opDownloadCmd = opCommand("download", "Download the CSV template", cobra.NoArgs, false,
	func(cmd *cobra.Command, a *app, args []string) error {
		if err := requireOperation(a); err != nil {
			return err
		}
		path, err := a.console.DownloadCSV(cmd.Context(), dirFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	})

var opUploadCmd = opCommand("upload <file.csv>", "Upload the edited CSV", cobra.ExactArgs(1), false,
	func(cmd *cobra.Command, a *app, args []string) error {
		if err := requireOperation(a); err != nil {
			return err
		}
		result, err := a.console.UploadCSV(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		return nil
	})

var opProcessCmd = opCommand("process", "Apply the uploaded CSV", cobra.NoArgs, true,
	func(cmd *cobra.Command, a *app, args []string) error {
		if err := requireOperation(a); err != nil {
			return err
		}
		result, err := a.console.ProcessUpdates(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		op := a.console.Tracker().Operation()
		if waitFlag && !op.Status.Terminal() {
			if op, err = a.console.Tracker().Wait(cmd.Context(), intervalFlag); err != nil {
				return err
			}
		}
		printOperation(cmd.OutOrStdout(), op)
		return nil
	})

var opWaitCmd = opCommand("wait", "Poll until the operation completes or fails", cobra.NoArgs, false,
	func(cmd *cobra.Command, a *app, args []string) error {
		if err := requireOperation(a); err != nil {
			return err
		}
		op, err := a.console.Tracker().Wait(cmd.Context(), intervalFlag)
		if err != nil {
			return err
		}
		printOperation(cmd.OutOrStdout(), op)
		return nil
	})

var opResetCmd = opCommand("reset", "Forget a finished operation so a new one can be created", cobra.NoArgs, false,
	func(cmd *cobra.Command, a *app, args []string) error {
		if err := a.console.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Ready for a new operation")
		return nil
	})

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past operations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		if err := a.requireLogin(); err != nil {
			return err
		}
		ops, err := a.client.GetOperationHistory(cmd.Context())
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), ops)
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <operation-id>",
	Short: "Restore the images a completed operation replaced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		if err := a.requireLogin(); err != nil {
			return err
		}
		result, err := a.client.RollbackOperation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		return nil
	},
}

var repeatCmd = &cobra.Command{
	Use:   "repeat <operation-id>",
	Short: "Run a finished operation's plan again as a new operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		if err := a.requireLogin(); err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := a.restore(ctx, false); err != nil {
			return err
		}
		op, err := a.client.RepeatOperation(ctx, args[0])
		if err != nil {
			return err
		}

		// Track the new operation unless another one is still running.
		t := a.console.Tracker()
		if t.State().Terminal() {
			t.Reset()
		}
		if t.State() == operation.NoOperation {
			if err := t.Resume(op); err != nil {
				return err
			}
			if waitFlag && !op.Status.Terminal() {
				if op, err = t.Wait(ctx, intervalFlag); err != nil {
					return err
				}
			}
		}
		printOperation(cmd.OutOrStdout(), op)
		return a.save()
	},
}

func init() {
	opDownloadCmd.Flags().StringVar(&dirFlag, "dir", ".", "Directory to write the CSV to")
	for _, c := range []*cobra.Command{opProcessCmd, opWaitCmd, repeatCmd} {
		c.Flags().DurationVar(&intervalFlag, "interval", 2*time.Second, "Polling interval")
	}
	opProcessCmd.Flags().BoolVar(&waitFlag, "wait", false, "Wait until the operation finishes")
	repeatCmd.Flags().BoolVar(&waitFlag, "wait", false, "Wait until the new operation finishes")

	opCmd.AddCommand(opCreateCmd, opStatusCmd, opDownloadCmd, opUploadCmd, opProcessCmd, opWaitCmd, opResetCmd)
}
