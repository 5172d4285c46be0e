package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginUsername      string
	loginPassword      string
	loginPasswordStdin bool
	loginNext          string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Log in with a username and password. The token pair is stored in the
configured session storage and the identity is checked before the command
returns, so the printed destination reflects the account's role.

Examples:
  # Prompt for the password
  vitrina login --username ana

  # Read the password from a pipe
  echo "$PASSWORD" | vitrina login --username ana --password-stdin

  # Return to a page after login
  vitrina login --username ana --next /panel/favoritos`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username (required)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "account password (prompted if empty)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	loginCmd.Flags().StringVar(&loginNext, "next", "", "page to land on after login")
	_ = loginCmd.MarkFlagRequired("username")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd, loginPassword, loginPasswordStdin)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	dest, err := a.auth.Login(cmd.Context(), loginUsername, password, loginNext)
	if err != nil {
		return a.describeError(err)
	}
	printIdentity(cmd.OutOrStdout(), a.store.Snapshot())
	fmt.Fprintf(cmd.OutOrStdout(), "next: %s\n", dest)
	return nil
}

// readPassword returns flag, or a line read from stdin when fromStdin is set
// or flag is empty. The prompt goes to stderr so stdout stays scriptable.
func readPassword(cmd *cobra.Command, flag string, fromStdin bool) (string, error) {
	if flag != "" && !fromStdin {
		return flag, nil
	}
	if !fromStdin {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}
