package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-order/internal/domain/coupon"
	"github.com/xenking/commerce-order/internal/promotion"
	"github.com/xenking/commerce-order/internal/repository"
)

// writeBatch bounds the number of coupons sent in one pgx batch.
const writeBatch = 5_000

// knownRules overrides the command line rule for codes with a fixed meaning.
var knownRules = map[string]promotion.Template{
	"BIRTHDAY": {DiscountType: coupon.DiscountFreeLowest, Description: "Birthday: free lowest item"},
	"BUYGETON": {DiscountType: coupon.DiscountFreeLowest, MinItems: 2, Description: "Lowest item free (buy 2+)"},
	"FIFTYOFF": {DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(50), Description: "50% off entire order"},
	"HAPPYHRS": {DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(18), Description: "Happy Hours: 18% off"},
	"OVER9000": {DiscountType: coupon.DiscountFixed, Value: decimal.NewFromInt(9), Currency: "USD", Description: "9 USD off your order"},
}

type options struct {
	dataDir     string
	pattern     string
	databaseURL string
	dryRun      bool

	extract promotion.Options

	discountType string
	value        string
	currency     string
	minItems     int
	maxUses      int
	description  string
	validFor     time.Duration
}

func main() {
	var opts options

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing gzip code lists")
	flag.StringVar(&opts.pattern, "pattern", "*.gz", "glob of code lists inside --data-dir")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "print accepted codes instead of writing them")
	flag.IntVar(&opts.extract.MinSources, "min-sources", 2, "number of files a code must appear in")
	flag.UintVar(&opts.extract.Capacity, "capacity", 120_000_000, "expected codes per file")
	flag.Float64Var(&opts.extract.FalsePositiveRate, "fpr", 0.001, "bloom filter false positive rate")
	flag.IntVar(&opts.extract.MinLen, "min-len", 8, "minimum code length")
	flag.IntVar(&opts.extract.MaxLen, "max-len", 10, "maximum code length")
	flag.StringVar(&opts.discountType, "discount-type", string(coupon.DiscountPercentage), "percentage, fixed or free_lowest")
	flag.StringVar(&opts.value, "value", "10", "discount value")
	flag.StringVar(&opts.currency, "currency", "", "currency of a fixed discount")
	flag.IntVar(&opts.minItems, "min-items", 0, "minimum order quantity")
	flag.IntVar(&opts.maxUses, "max-uses", 0, "maximum redemptions, 0 for unlimited")
	flag.StringVar(&opts.description, "description", "Valid promo code: 10% off", "coupon description")
	flag.DurationVar(&opts.validFor, "valid-for", 0, "validity window starting now, 0 for no expiry")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("promotion ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promotion ingest completed successfully")
}

func run(ctx context.Context, opts options) error {
	tmpl, err := opts.template()
	if err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(opts.dataDir, opts.pattern))
	if err != nil {
		return errors.Wrap(err, "match code lists")
	}
	slices.Sort(files)
	slog.Info("code lists found", slog.Int("files", len(files)), slog.Int("min_sources", opts.extract.MinSources))

	opts.extract.Logger = slog.Default()
	codes, err := promotion.NewExtractor(opts.extract).Extract(ctx, files)
	if err != nil {
		return errors.Wrap(err, "extract codes")
	}
	if len(codes) == 0 {
		slog.Info("no codes to insert")
		return nil
	}

	rules := promotion.Rules(codes, tmpl, knownRules, time.Now())
	if opts.dryRun {
		for _, r := range rules {
			slog.Info("accepted", slog.String("code", r.Code), slog.String("type", string(r.DiscountType)))
		}
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	coupons := repository.NewCouponRepository(pool)
	for chunk := range slices.Chunk(rules, writeBatch) {
		if err := coupons.Upsert(ctx, chunk...); err != nil {
			return errors.Wrap(err, "write coupons")
		}
		slog.Info("coupons written", slog.Int("count", len(chunk)))
	}
	return nil
}

func (o options) template() (promotion.Template, error) {
	dt := coupon.DiscountType(o.discountType)
	switch dt {
	case coupon.DiscountPercentage, coupon.DiscountFixed, coupon.DiscountFreeLowest:
	default:
		return promotion.Template{}, errors.Errorf("unknown discount type %q", o.discountType)
	}

	value, err := decimal.NewFromString(o.value)
	if err != nil {
		return promotion.Template{}, errors.Wrap(err, "parse value")
	}
	if value.IsNegative() {
		return promotion.Template{}, errors.Errorf("value must not be negative: %s", value)
	}

	return promotion.Template{
		DiscountType: dt,
		Value:        value,
		Currency:     o.currency,
		MinItems:     o.minItems,
		MaxUses:      o.maxUses,
		Description:  o.description,
		ValidFor:     o.validFor,
	}, nil
}
