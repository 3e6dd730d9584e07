// Package app wires the order service process together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/commerce-order/internal/domain/coupon"
	"github.com/xenking/commerce-order/internal/domain/order"
	"github.com/xenking/commerce-order/internal/domain/workflow"
	"github.com/xenking/commerce-order/internal/reconcile"
	"github.com/xenking/commerce-order/internal/repository"
	"github.com/xenking/commerce-order/pkg/health"
	"github.com/xenking/commerce-order/pkg/httpmiddleware"
)

// Telemetry provides the meter and tracer providers. *app.Telemetry from
// go-faster/sdk satisfies it.
type Telemetry interface {
	MeterProvider() metric.MeterProvider
	TracerProvider() trace.TracerProvider
}

// Services bundles the repositories and the order service built on a pool.
type Services struct {
	Orders    *repository.OrderRepository
	LineItems *repository.LineItemRepository
	Products  *repository.ProductRepository
	Coupons   *repository.CouponRepository
	Stores    *repository.StoreRepository
	Customers *repository.CustomerRepository

	Workflow *workflow.Workflow
	Order    *order.Service
}

// NewServices builds every repository on pool and composes the order service
// with the default workflow.
func NewServices(pool *pgxpool.Pool) *Services {
	s := &Services{
		Orders:    repository.NewOrderRepository(pool),
		LineItems: repository.NewLineItemRepository(pool),
		Products:  repository.NewProductRepository(pool),
		Coupons:   repository.NewCouponRepository(pool),
		Stores:    repository.NewStoreRepository(pool),
		Customers: repository.NewCustomerRepository(pool),
		Workflow:  workflow.Default(),
	}
	s.Order = order.NewService(
		s.Orders,
		s.Products,
		s.Stores,
		s.Customers,
		coupon.NewRepoValidator(s.Coupons),
		s.Workflow,
	)
	return s
}

// Run opens the database, starts health checks and the reconciler, and
// serves the operational endpoints until ctx is done.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Register(health.Readiness, "postgres", cfg.Health.PostgresTimeout, health.PingCheck(pool))
	healthSvc.Register(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))
	healthSvc.Start(ctx, cfg.Health.Interval)
	defer healthSvc.Stop()

	svc := NewServices(pool)
	lg.Info("Order service ready", zap.String("workflow", svc.Workflow.ID()))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("commerce-order", m.MeterProvider(), m.TracerProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Reconcile.Enabled {
		rec, err := reconcile.New(svc.Orders, reconcile.Options{
			BatchSize:      cfg.Reconcile.BatchSize,
			Workers:        cfg.Reconcile.Workers,
			Logger:         lg.Named("reconcile"),
			MeterProvider:  m.MeterProvider(),
			TracerProvider: m.TracerProvider(),
		})
		if err != nil {
			return errors.Wrap(err, "create reconciler")
		}
		g.Go(func() error {
			return rec.Run(gctx, cfg.Reconcile.Interval)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
