package cmd

import (
	"github.com/spf13/cobra"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and sync data with the remote record",
	Long: `Sign in as an account. From then on settings, sessions and the competitive
analysis are read from the account's remote record and edits are synced to it
in the background. On-device data is left untouched and comes back after logout.

With merge_on_login enabled, sessions saved on this device are merged into the
remote record instead of being hidden by it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		id, err := app.Login(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		st := app.SyncStatus()
		app.UI().Printf("Signed in as %s\n", id.Email)
		if !st.Reconciled {
			app.UI().Warnf("remote record could not be loaded, using on-device data until `ytdash sync` succeeds\n")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and return to on-device data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		if !app.SyncStatus().Authenticated {
			app.UI().Println("Not signed in")
			return nil
		}
		if err := app.Logout(cmd.Context()); err != nil {
			return err
		}
		app.UI().Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		st := app.SyncStatus()
		if !st.Authenticated {
			app.UI().Println("Not signed in")
			return nil
		}
		app.UI().Printf("%s (%s)\n", st.Email, st.UserID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
