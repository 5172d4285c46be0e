package cmd

import (
	"fmt"
	"net/url"
	"os/signal"

	"github.com/spf13/cobra"

	httpadapter "github.com/vitrina-app/vitrina/internal/adapter/inbound/http"
	"github.com/vitrina-app/vitrina/internal/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the front server",
	Long: `Serve the front-end bundle on server.http_addr. Panel pages are gated by
the route guard, /login /register and /logout accept form posts, and
server.api_prefix is proxied to the backend with the session's token.

The server binds to localhost by default; it holds one session and is meant
for a single user. Requests must name a loopback host, the listen host, or
one of server.allowed_hosts, and browser posts and API calls from other
sites are refused.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.http_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(cmd.Context(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Storage.Driver == config.StorageNone {
		a.logger.Warn("storage.driver is none: the session never hydrates and panel pages answer 503")
	}

	backendURL, err := url.Parse(a.client.BaseURL())
	if err != nil {
		return fmt.Errorf("invalid backend.base_url: %w", err)
	}
	addr := a.cfg.Server.HTTPAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := httpadapter.NewServer(a.store, a.auth,
		httpadapter.WithAddr(addr),
		httpadapter.WithAllowedHosts(a.cfg.Server.AllowedHosts...),
		httpadapter.WithRoutes(a.cfg.GuardRoutes()),
		httpadapter.WithGuardWait(a.cfg.GuardWait()),
		httpadapter.WithStaticDir(a.cfg.Server.StaticDir),
		httpadapter.WithAPIProxy(a.cfg.Server.APIPrefix, backendURL, a.client.HTTPClient().Transport),
		httpadapter.WithMetrics(a.registry, a.metrics),
		httpadapter.WithVersion(Version),
		httpadapter.WithLogger(a.logger),
	)
	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	a.logger.Info("vitrina stopped")
	return nil
}
