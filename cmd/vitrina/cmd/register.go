package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

var (
	registerUsername      string
	registerEmail         string
	registerPassword      string
	registerPasswordStdin bool
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account, then log in",
	Long: `Create a client account. On success vitrina logs in with the same
credentials. Field errors from the backend are printed as returned.

Example:
  vitrina register --username ana --email ana@example.com`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "account username (required)")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "account email (required)")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "account password (prompted if empty)")
	registerCmd.Flags().BoolVar(&registerPasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd, registerPassword, registerPasswordStdin)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	dest, err := a.auth.Register(cmd.Context(), registerUsername, registerEmail, password, "")
	if err != nil {
		var vErr *session.ValidationError
		if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
			fields := make([]string, 0, len(vErr.Fields))
			for f := range vErr.Fields {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			for _, f := range fields {
				for _, msg := range vErr.Fields[f] {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f, msg)
				}
			}
			return errors.New("registration rejected")
		}
		return a.describeError(err)
	}
	printIdentity(cmd.OutOrStdout(), a.store.Snapshot())
	fmt.Fprintf(cmd.OutOrStdout(), "next: %s\n", dest)
	return nil
}
