// Package promotion extracts promotion codes that appear in several large
// gzip-compressed code lists.
//
// Pass one streams every file concurrently into its own bloom filter. Pass two
// streams the files again and keeps, per file, the codes that the other
// filters also report. A code is accepted when at least MinSources files
// actually contain it, so bloom false positives never leak into the result.
package promotion

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"slices"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/commerce-order/internal/domain/coupon"
)

// maxSources is the number of files a uint bitmask can track.
const maxSources = bits.UintSize

// Options tunes filter sizing and code acceptance.
type Options struct {
	// Capacity is the expected number of codes per file.
	Capacity uint
	// FalsePositiveRate of each bloom filter.
	FalsePositiveRate float64
	MinLen, MaxLen    int
	// MinSources is how many files must contain a code.
	MinSources    int
	ProgressEvery uint64
	Logger        *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Capacity == 0 {
		o.Capacity = 1_000_000
	}
	if o.FalsePositiveRate <= 0 {
		o.FalsePositiveRate = 0.001
	}
	if o.MinLen <= 0 {
		o.MinLen = 8
	}
	if o.MaxLen < o.MinLen {
		o.MaxLen = 10
	}
	if o.MinSources <= 0 {
		o.MinSources = 2
	}
	if o.ProgressEvery == 0 {
		o.ProgressEvery = 10_000_000
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Extractor runs the two passes over a set of files.
type Extractor struct {
	opts Options
}

// NewExtractor returns an Extractor with defaults filled in.
func NewExtractor(opts Options) *Extractor {
	opts.setDefaults()
	return &Extractor{opts: opts}
}

// Extract returns the accepted codes in ascending order.
func (x *Extractor) Extract(ctx context.Context, paths []string) ([]string, error) {
	switch {
	case len(paths) > maxSources:
		return nil, errors.Errorf("at most %d files are supported, got %d", maxSources, len(paths))
	case len(paths) < x.opts.MinSources:
		return nil, errors.Errorf("need at least %d files for a quorum of %d, got %d",
			x.opts.MinSources, x.opts.MinSources, len(paths))
	}

	start := time.Now()
	filters, err := x.buildFilters(ctx, paths)
	if err != nil {
		return nil, errors.Wrap(err, "build filters")
	}
	x.opts.Logger.Info("filters built", slog.Int("files", len(paths)), slog.Duration("took", time.Since(start)))

	codes, err := x.findCodes(ctx, paths, filters)
	if err != nil {
		return nil, errors.Wrap(err, "find codes")
	}
	x.opts.Logger.Info("codes accepted", slog.Int("count", len(codes)), slog.Duration("took", time.Since(start)))
	return codes, nil
}

func (x *Extractor) validLen(code string) bool {
	return len(code) >= x.opts.MinLen && len(code) <= x.opts.MaxLen
}

func (x *Extractor) buildFilters(ctx context.Context, paths []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(x.opts.Capacity, x.opts.FalsePositiveRate)
			n, err := x.stream(ctx, path, func(code string) { filter.AddString(code) })
			if err != nil {
				return err
			}
			x.opts.Logger.Debug("filter done", slog.String("file", path), slog.Uint64("codes", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func (x *Extractor) findCodes(ctx context.Context, paths []string, filters []*bloom.BloomFilter) ([]string, error) {
	found := make([]map[string]uint, len(paths))
	need := x.opts.MinSources - 1

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			bit := uint(1) << uint(i)
			candidates := make(map[string]uint)
			_, err := x.stream(ctx, path, func(code string) {
				others := 0
				for j, f := range filters {
					if j != i && f.TestString(code) {
						others++
					}
				}
				if others >= need {
					candidates[code] |= bit
				}
			})
			if err != nil {
				return err
			}
			found[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, candidates := range found {
		for code, mask := range candidates {
			merged[code] |= mask
		}
	}

	var codes []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= x.opts.MinSources {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)
	return codes, nil
}

// stream calls fn for each line of the gzip file at path whose length is in
// range, and returns how many lines it passed on.
func (x *Extractor) stream(ctx context.Context, path string, fn func(code string)) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var n uint64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		code := scanner.Text()
		if !x.validLen(code) {
			continue
		}
		fn(code)
		n++
		if n%x.opts.ProgressEvery == 0 {
			x.opts.Logger.Info("progress", slog.String("file", path), slog.Uint64("codes", n))
		}
	}
	if err := scanner.Err(); err != nil {
		return n, errors.Wrapf(err, "scan %s", path)
	}
	return n, nil
}

// Template describes the rule every ingested code receives unless it has an
// override.
type Template struct {
	DiscountType coupon.DiscountType
	Value        decimal.Decimal
	Currency     string
	MinItems     int
	MaxUses      int
	Description  string
	ValidFor     time.Duration
}

// Rules turns accepted codes into coupon rules. overrides replaces the
// template for specific codes.
func Rules(codes []string, tmpl Template, overrides map[string]Template, now time.Time) []coupon.Rule {
	rules := make([]coupon.Rule, 0, len(codes))
	for _, code := range codes {
		t, ok := overrides[code]
		if !ok {
			t = tmpl
		}
		rule := coupon.Rule{
			Code:         code,
			DiscountType: t.DiscountType,
			Value:        t.Value,
			Currency:     t.Currency,
			MinItems:     t.MinItems,
			MaxUses:      t.MaxUses,
			Description:  t.Description,
		}
		if t.ValidFor > 0 {
			from := now
			until := now.Add(t.ValidFor)
			rule.ValidFrom = &from
			rule.ValidUntil = &until
		}
		rules = append(rules, rule)
	}
	return rules
}
