// Package reconcile keeps persisted order totals in step with their line items.
//
// Line items can be saved on their own, which leaves the stored order total
// stale. The Reconciler reloads every order, which recomputes its total, and
// writes the result back when it differs.
package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/commerce-order/internal/domain/money"
	"github.com/xenking/commerce-order/internal/domain/order"
)

const instrumentationName = "github.com/xenking/commerce-order/internal/reconcile"

// Store is the persistence the reconciler needs.
type Store interface {
	ListIDs(ctx context.Context, after string, limit int) ([]string, error)
	GetByID(ctx context.Context, id string) (*order.Order, error)
	UpdateTotal(ctx context.Context, id string, total *money.Money) (bool, error)
}

// Options configures a Reconciler. Zero values fall back to defaults.
type Options struct {
	BatchSize      int
	Workers        int
	Logger         *zap.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

func (o *Options) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Result summarises one pass.
type Result struct {
	Checked int64
	Updated int64
	Failed  int64
}

// Reconciler recomputes stored order totals.
type Reconciler struct {
	store     Store
	batchSize int
	workers   int
	lg        *zap.Logger
	tracer    trace.Tracer

	reconciled metric.Int64Counter
	drift      metric.Int64Counter
	failures   metric.Int64Counter
}

// New creates a Reconciler. Meter and tracer providers are required.
func New(store Store, opts Options) (*Reconciler, error) {
	opts.setDefaults()
	if opts.MeterProvider == nil || opts.TracerProvider == nil {
		return nil, errors.New("meter and tracer providers are required")
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	r := &Reconciler{
		store:     store,
		batchSize: opts.BatchSize,
		workers:   opts.Workers,
		lg:        opts.Logger,
		tracer:    opts.TracerProvider.Tracer(instrumentationName),
	}

	var err error
	if r.reconciled, err = meter.Int64Counter("orders.reconciled",
		metric.WithDescription("Orders whose total was recomputed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.reconciled")
	}
	if r.drift, err = meter.Int64Counter("orders.total_drift",
		metric.WithDescription("Orders whose stored total was stale and rewritten"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.total_drift")
	}
	if r.failures, err = meter.Int64Counter("orders.reconcile_failures",
		metric.WithDescription("Orders that could not be reconciled"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.reconcile_failures")
	}
	return r, nil
}

// RunOnce reconciles every order once. Orders that fail to load or save are
// logged and counted; only listing errors and cancellation abort the pass.
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.Pass")
	defer span.End()

	var (
		res                     Result
		checked, updated, fails atomic.Int64
		after                   string
	)
	for {
		ids, err := r.store.ListIDs(ctx, after, r.batchSize)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list orders")
			return res, errors.Wrap(err, "list orders")
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for _, id := range ids {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				wrote, err := r.reconcile(gctx, id)
				checked.Add(1)
				if err != nil {
					fails.Add(1)
					r.failures.Add(gctx, 1)
					r.lg.Warn("Reconcile order failed", zap.String("order_id", id), zap.Error(err))
					return nil
				}
				r.reconciled.Add(gctx, 1)
				if wrote {
					updated.Add(1)
					r.drift.Add(gctx, 1)
					r.lg.Info("Order total corrected", zap.String("order_id", id))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return r.result(&checked, &updated, &fails), err
		}

		after = ids[len(ids)-1]
		if len(ids) < r.batchSize {
			break
		}
	}

	res = r.result(&checked, &updated, &fails)
	span.SetAttributes(
		attribute.Int64("orders.checked", res.Checked),
		attribute.Int64("orders.updated", res.Updated),
		attribute.Int64("orders.failed", res.Failed),
	)
	return res, nil
}

func (r *Reconciler) result(checked, updated, fails *atomic.Int64) Result {
	return Result{Checked: checked.Load(), Updated: updated.Load(), Failed: fails.Load()}
}

func (r *Reconciler) reconcile(ctx context.Context, id string) (bool, error) {
	o, err := r.store.GetByID(ctx, id)
	if err != nil {
		return false, errors.Wrap(err, "load")
	}
	var total *money.Money
	if t, ok := o.TotalPrice(); ok {
		total = &t
	}
	wrote, err := r.store.UpdateTotal(ctx, id, total)
	if err != nil {
		return false, errors.Wrap(err, "update total")
	}
	return wrote, nil
}

// Run calls RunOnce immediately and then every interval until ctx is done.
// Pass errors are logged and do not stop the loop.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := r.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			r.lg.Error("Reconcile pass failed", zap.Error(err))
		default:
			r.lg.Debug("Reconcile pass done",
				zap.Int64("checked", res.Checked),
				zap.Int64("updated", res.Updated),
				zap.Int64("failed", res.Failed),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
