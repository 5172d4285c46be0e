package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/vitrina-app/vitrina/internal/domain/guard"
)

var openCmd = &cobra.Command{
	Use:   "open <path>",
	Short: "Show the guard decision for a page",
	Long: `Mount the route guard on a page path with the stored session and print
its decision once the session has settled:

  allow                      the page may render
  redirect_login <target>    no authenticated session
  redirect_role <target>     the page belongs to the other role
  pending                    the session did not settle in server.guard_wait

Pages outside routes.panel are public and always allowed.

Examples:
  vitrina open /panel/dashboard
  vitrina open "/panel/cliente?tab=favoritos"`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	location := args[0]
	if !guard.IsRelativePath(location) {
		return fmt.Errorf("%q is not a page path", location)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("invalid page path: %w", err)
	}
	routes := a.cfg.GuardRoutes()
	opts, guarded := routes.OptionsFor(u.Path)
	if !guarded {
		fmt.Fprintln(cmd.OutOrStdout(), guard.Decision{Kind: guard.Allow})
		return nil
	}

	m := guard.NewMount(cmd.Context(), a.store, location, opts, routes, a.logger)
	defer m.Unmount()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.GuardWait())
	defer cancel()
	d, err := m.Wait(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), d)
	return nil
}
