package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"clinic-scheduler/internal/clock"
	"clinic-scheduler/internal/config"
	gweb "clinic-scheduler/internal/grpcweb"
	"clinic-scheduler/internal/handler"
	"clinic-scheduler/internal/middleware"
	"clinic-scheduler/internal/notify"
	"clinic-scheduler/internal/scheduling"
	"clinic-scheduler/internal/store"
	"clinic-scheduler/internal/store/memstore"
)

// backend is what both storage drivers provide.
type backend interface {
	scheduling.Repository
	scheduling.UserLookup
	handler.UserStore
	Ping(ctx context.Context) error
}

func main() {
	root := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic appointment scheduling service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC server and the gRPC-Web bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := context.Background()
			pool, err := store.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			defer pool.Close()
			applied, err := store.New(pool).Migrate(ctx)
			if err != nil {
				return err
			}
			log.Info().Strs("files", applied).Msg("migrations applied")
			return nil
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// migrate applies the schema. Tests swap it out.
var migrate = (*store.Store).Migrate

// openBackend builds the configured storage driver. A postgres backend is
// only returned once its schema is in place: the slot index is what makes
// concurrent bookings safe.
func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (backend, func(), error) {
	if cfg.StoreDriver == "memory" {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return memstore.New(), func() {}, nil
	}
	pool, err := store.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	log.Info().Msg("connected to postgres")
	pg := store.New(pool)
	if _, err := migrate(pg, ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, pool.Close, nil
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	// notifications
	dispatcher := notify.NewDispatcher(log)
	dispatcher.Register(notify.AuditListener(log))
	dispatcher.Register(notify.EmailListener(notify.LogSender{Log: log}, loc))
	defer dispatcher.Drain()

	svc := scheduling.NewService(db, db, dispatcher, clock.System{}, scheduling.DefaultHours(loc))
	h := handler.New(svc, db, cfg.JWTSecret, log)

	// grpc server
	rl := middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.Logging(log),
			middleware.RateLimit(rl),
			middleware.Auth(cfg.JWTSecret),
		),
	)
	handler.RegisterScheduleServiceServer(srv, h)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(handler.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("grpc listening")
		if err := srv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc")
		}
	}()

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	bridge, err := gweb.New("localhost:"+cfg.Port, log)
	if err != nil {
		return err
	}
	defer bridge.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "X-Grpc-Web", "X-User-Agent", "Authorization"},
		ExposeHeaders: []string{"Grpc-Status", "Grpc-Message", "Grpc-Status-Details-Bin"},
		MaxAge:        86400,
	}))
	bridge.Mount(e)
	e.GET("/healthz", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	go func() {
		log.Info().Str("port", cfg.WebPort).Msg("grpc-web listening")
		if err := e.Start(":" + cfg.WebPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down")
	hs.Shutdown()
	srv.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
