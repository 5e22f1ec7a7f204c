package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile with the remote record and send pending edits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		if status, _ := cmd.Flags().GetBool("status"); status {
			return printSyncStatus(app, app.SyncStatus())
		}
		st := app.SyncStatus()
		if !st.RemoteEnabled {
			return internal.ErrRemoteDisabled
		}
		if !st.Authenticated {
			return fmt.Errorf("not signed in, run `ytdash login <email>`")
		}
		st, err = app.SyncNow(cmd.Context())
		if perr := printSyncStatus(app, st); perr != nil {
			return perr
		}
		if err != nil {
			return err
		}
		if !st.Reconciled {
			return fmt.Errorf("remote record could not be loaded")
		}
		return nil
	},
}

func printSyncStatus(app *internal.App, st internal.SyncStatus) error {
	mode := "on-device"
	if st.Authenticated {
		mode = "remote (" + st.Email + ")"
	}
	w := tabwriter.NewWriter(app.UI().Out(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "remote configured\t%t\n", st.RemoteEnabled)
	fmt.Fprintf(w, "storage\t%s\n", mode)
	if st.Authenticated {
		fmt.Fprintf(w, "reconciled\t%t\n", st.Reconciled)
		fmt.Fprintf(w, "pending edits\t%t\n", st.Pending)
		if st.Unsent {
			fmt.Fprintf(w, "unsent edits\t%t\n", st.Unsent)
		}
	}
	return w.Flush()
}

func init() {
	syncCmd.Flags().Bool("status", false, "Only print the sync status")
	rootCmd.AddCommand(syncCmd)
}
