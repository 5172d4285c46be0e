package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Check the stored session against the backend",
	Long: `Resolve the identity of the stored access token. A token the backend
rejects, or a backend that cannot be reached, reads as not authenticated;
the stored session is kept either way.`,
	RunE: runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Resolve(cmd.Context()); err != nil {
		switch {
		case errors.Is(err, session.ErrTransientIdentity):
			fmt.Fprintf(cmd.ErrOrStderr(), "identity check failed: %v\n", a.describeError(err))
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "session not accepted: %v\n", err)
		}
	}
	printIdentity(cmd.OutOrStdout(), a.store.Snapshot())
	return nil
}

// printIdentity writes the session summary. Tokens are shown only as
// fingerprints.
func printIdentity(w io.Writer, st session.State) {
	role := "client"
	if st.Identity.IsModelo {
		role = "modelo"
	}
	switch {
	case !st.Session.HasAccess():
		fmt.Fprintln(w, "authenticated: false")
		fmt.Fprintln(w, "session: none")
		return
	case !st.Identity.Resolved:
		fmt.Fprintln(w, "authenticated: unknown")
	case st.Identity.IsAuthenticated:
		fmt.Fprintln(w, "authenticated: true")
		fmt.Fprintf(w, "role: %s\n", role)
	default:
		fmt.Fprintln(w, "authenticated: false")
	}
	fmt.Fprintf(w, "token: %s\n", session.Fingerprint(st.Session.AccessToken))
}
