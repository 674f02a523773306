package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/semlog/internal/api"
	"github.com/banshee-data/semlog/internal/db"
	"github.com/banshee-data/semlog/internal/fsutil"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/version"
)

const healthService = "semlog.Episodes"

type serveOptions struct {
	listen     string
	grpcListen string
	dbPath     string
	owlDir     string
	admin      bool
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recorded episodes over HTTP",
	Long: `Serve exposes the episodes of a database as JSON, renders their timelines,
serves the OWL documents of --owl-dir and mounts the database debug routes
under /debug/. A gRPC health service reports readiness.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, serveOpts, nil)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.listen, "listen", ":8080", "HTTP listen address")
	f.StringVar(&serveOpts.grpcListen, "grpc-listen", "", "gRPC health listen address; disabled when empty")
	f.StringVar(&serveOpts.dbPath, "db", "semlog.db", "SQLite database")
	f.StringVar(&serveOpts.owlDir, "owl-dir", "", "Directory of OWL experiment documents")
	f.BoolVar(&serveOpts.admin, "admin", true, "Mount the /debug/ admin routes")
}

// serve runs until ctx is done. ready, when set, receives the bound
// addresses once both listeners are open; grpcAddr is nil when disabled.
func serve(ctx context.Context, o serveOptions, ready func(httpAddr, grpcAddr net.Addr)) error {
	store, err := db.NewDB(o.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	routes := api.NewServer(store, fsutil.OSFileSystem{}, o.owlDir).ServeMux()
	mux := http.NewServeMux()
	mux.Handle("/api/", routes)
	mux.Handle("/episodes/", routes)
	mux.Handle("/owl/", routes)
	if o.admin {
		store.AttachAdminRoutes(mux)
	}

	httpLis, err := net.Listen("tcp", o.listen)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var (
		grpcLis  net.Listener
		grpcSrv  *grpc.Server
		healthSv *health.Server
	)
	if o.grpcListen != "" {
		if grpcLis, err = net.Listen("tcp", o.grpcListen); err != nil {
			httpLis.Close()
			return err
		}
		grpcSrv = grpc.NewServer()
		healthSv = health.NewServer()
		healthpb.RegisterHealthServer(grpcSrv, healthSv)
		healthSv.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitoring.Logf("%s: serving %s on %s", version.String(), o.dbPath, httpLis.Addr())
		if err := srv.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error {
			monitoring.Logf("gRPC health on %s", grpcLis.Addr())
			return grpcSrv.Serve(grpcLis)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if grpcSrv != nil {
			healthSv.Shutdown()
			grpcSrv.GracefulStop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if ready != nil {
		var grpcAddr net.Addr
		if grpcLis != nil {
			grpcAddr = grpcLis.Addr()
		}
		ready(httpLis.Addr(), grpcAddr)
	}
	return g.Wait()
}
