package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/parsegraph/internal/server"
	"github.com/matzehuels/parsegraph/pkg/lifecycle"
	"github.com/matzehuels/parsegraph/pkg/observability/prom"
	"github.com/matzehuels/parsegraph/pkg/render/nodelink"
	"github.com/matzehuels/parsegraph/pkg/viewer"
)

const shutdownTimeout = 5 * time.Second

// serveCommand creates the serve command that runs the local HTTP host.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		backend backendFlags
		listen  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP host for a browser front end",
		Long: `Serve the analysis and graph viewer API on a local address.

Metrics for backend calls, the result cache and rendering are exposed in
Prometheus format at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			svc, cfg, err := c.newService(ctx, &backend)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.Listen
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			prom.New(reg).Install()

			unsubscribe := svc.Tracker().Subscribe(lifecycle.ListenerFuncs{
				Complete: func(r lifecycle.Record) {
					logger.Debug("request finished", "id", r.ID, "status", r.Status, "duration", r.Duration)
				},
				Cancel: func(r lifecycle.Record) {
					logger.Info("request cancelled", "id", r.ID)
				},
			})
			defer unsubscribe()

			gv := nodelink.NewGraphviz()
			defer gv.Close()
			engine := viewer.New(gv, viewer.Options{
				EmptyMessages: viewer.DefaultEmptyMessages,
				Logger:        logger,
			})

			srv := &http.Server{
				Addr:              listen,
				Handler:           server.New(svc, engine, server.Options{Gatherer: reg, Logger: logger}),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return ctx },
			}
			return runServer(ctx, srv, func() {
				logger.Info("Serving", "addr", "http://"+listen, "backend", svc.BaseURL())
			})
		},
	}

	backend.register(cmd)
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, 127.0.0.1:8080)")
	return cmd
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, started func()) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	started()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
