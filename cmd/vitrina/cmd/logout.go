package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the session and invalidate it on the backend",
	Long: `Remove the stored session. The backend is told to invalidate the
tokens; the local session is gone even if that call fails.`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	// close waits for the backend logout started below.
	defer a.close()

	had := a.store.AccessToken() != ""
	fmt.Fprintf(cmd.OutOrStdout(), "next: %s\n", a.auth.Logout())
	if !had {
		fmt.Fprintln(cmd.ErrOrStderr(), "No session was stored.")
	}
	return nil
}
