package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"storefront/pkg/config"
	"storefront/pkg/domain/service"
	"storefront/pkg/infrastructure/mysql"
	"storefront/pkg/transport"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 5 * time.Second
	defaultRetryLimit   = 100
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.App{
		Name:  "storefront",
		Usage: "club merchandise order service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the gRPC health endpoint",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations",
				Action: migrateDatabase,
			},
			{
				Name:   "seed",
				Usage:  "store the club shirt catalog",
				Action: seed,
			},
			{
				Name:  "retry-notifications",
				Usage: "resend order emails that were not delivered",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: defaultRetryLimit, Usage: "max notifications per run"},
				},
				Action: retryNotifications,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("storefront failed")
	}
}

type dependencies struct {
	closers       []func() error
	notifications service.NotificationService
	orders        service.OrderService
	catalog       service.CatalogService
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.WithError(err).Warn("failed to release resource")
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	return cfg, nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := mysql.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := mysql.Migrate(db); err != nil {
			return err
		}
	}

	deps, err := wire(cfg, db)
	if err != nil {
		return err
	}
	defer deps.Close()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: transport.Router(deps.orders, deps.catalog, db, cfg.RequestTimeout),
	}
	healthServer := health.NewServer()
	grpcServer := transport.NewGRPCServer(healthServer)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{"url": cfg.HTTPAddress}).Info("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		listener, err := net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"url": cfg.GRPCAddress}).Info("Starting health server")
		return grpcServer.Serve(listener)
	})
	g.Go(func() error {
		transport.WatchDatabase(ctx, healthServer, db, healthCheckInterval)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func migrateDatabase(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := mysql.Open(c.Context, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := mysql.Migrate(db); err != nil {
		return err
	}
	log.Info("database is up to date")
	return nil
}

func seed(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := mysql.Open(c.Context, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := service.DefaultCatalog()
	pricing := service.PricingPolicy{ChargePersonalization: cfg.ChargePersonalization}
	if err := service.NewCatalogService(mysql.NewProductRepository(db), pricing).SeedProducts(c.Context, catalog); err != nil {
		return err
	}
	log.WithField("products", len(catalog)).Info("catalog seeded")
	return nil
}

func retryNotifications(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := mysql.Open(c.Context, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	deps, err := wire(cfg, db)
	if err != nil {
		return err
	}
	defer deps.Close()

	sent, failed, err := deps.notifications.RetryUndelivered(c.Context, c.Int("limit"))
	log.WithFields(log.Fields{"sent": sent, "failed": failed}).Info("notification retry finished")
	return err
}
