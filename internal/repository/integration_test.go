//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/commerce-order/internal/domain/coupon"
	"github.com/xenking/commerce-order/internal/domain/customer"
	"github.com/xenking/commerce-order/internal/domain/money"
	"github.com/xenking/commerce-order/internal/domain/order"
	"github.com/xenking/commerce-order/internal/domain/product"
	"github.com/xenking/commerce-order/internal/domain/store"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("testdata/docker-compose.test.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}
	defer func() {
		if err := dc.Down(context.Background(), tc.RemoveOrphans(true), tc.RemoveVolumes(true)); err != nil {
			log.Printf("compose down: %v", err)
		}
	}()

	err = dc.
		WaitForService("postgres", wait.ForListeningPort("5432/tcp")).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	pg, err := dc.ServiceContainer(ctx, "postgres")
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://commerce:commerce@%s:%s/commerce?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	if err := seedParties(ctx); err != nil {
		log.Fatalf("seed: %v", err)
	}

	return m.Run()
}

func seedParties(ctx context.Context) error {
	stores := NewStoreRepository(testPool)
	if err := stores.Upsert(ctx, store.Store{ID: 1, Name: "Main", DefaultCurrency: "USD"}); err != nil {
		return err
	}
	customers := NewCustomerRepository(testPool)
	if err := customers.Upsert(ctx, customer.Customer{ID: 1, Name: "Ada", Email: "ada@example.com"}); err != nil {
		return err
	}
	return customers.UpsertProfile(ctx, customer.Profile{
		ID: 1, CustomerID: 1, Type: "billing", FullName: "Ada Lovelace", CountryCode: "GB",
	})
}

func usd(v string) money.Money {
	return money.MustParse(v, "USD")
}

func TestOrderRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	a, err := order.NewLineItem(usd("2.00"), 1)
	require.NoError(t, err)
	b, err := order.NewLineItem(usd("3.00"), 2)
	require.NoError(t, err)
	require.NoError(t, b.AddAdjustment(order.Adjustment{Type: order.AdjustmentCustom, Label: "gift wrap", Amount: usd("5.00")}))

	o := order.New()
	require.NoError(t, o.SetStoreID(1))
	require.NoError(t, o.SetOwnerID(1))
	o.SetEmail("ada@example.com")
	require.NoError(t, o.SetLineItems([]*order.LineItem{a, b}))
	require.NoError(t, o.AddAdjustment(order.Adjustment{Type: order.AdjustmentFee, Label: "shipping", Amount: usd("9.00")}))
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	total, ok := got.TotalPrice()
	require.True(t, ok)
	assert.True(t, usd("27.00").Equal(total), "got %s", total)
	assert.Equal(t, "ada@example.com", got.Email())
	storeID, _ := got.StoreID()
	assert.Equal(t, int64(1), storeID)
	_, ok = got.BillingProfileID()
	assert.False(t, ok)

	items := got.LineItems()
	require.Len(t, items, 2)
	assert.Equal(t, a.ID, items[0].ID)
	assert.Equal(t, o.ID, items[1].OrderID)
	require.Len(t, items[1].Adjustments(), 1)

	// Dropping a line item deletes its row.
	require.NoError(t, got.RemoveLineItem(items[0]))
	require.NoError(t, repo.Save(ctx, got))

	got, err = repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.LineItems(), 1)

	_, err = NewLineItemRepository(testPool).GetByID(ctx, a.ID)
	require.ErrorIs(t, err, order.ErrLineItemNotFound)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_UpdateTotalOnDrift(t *testing.T) {
	ctx := context.Background()
	orders := NewOrderRepository(testPool)
	lineItems := NewLineItemRepository(testPool)

	li, err := order.NewLineItem(usd("4.00"), 1)
	require.NoError(t, err)
	o := order.New()
	require.NoError(t, o.AddLineItem(li))
	require.NoError(t, orders.Create(ctx, o))

	total, _ := o.TotalPrice()
	wrote, err := orders.UpdateTotal(ctx, o.ID, &total)
	require.NoError(t, err)
	assert.False(t, wrote, "unchanged total is not rewritten")

	stored, err := lineItems.GetByID(ctx, li.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.OrderID)
	require.NoError(t, stored.SetQuantity(3))
	require.NoError(t, lineItems.Save(ctx, stored, 0))

	reloaded, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	total, _ = reloaded.TotalPrice()
	assert.True(t, usd("12.00").Equal(total))

	wrote, err = orders.UpdateTotal(ctx, o.ID, &total)
	require.NoError(t, err)
	assert.True(t, wrote)

	ids, err := orders.ListIDs(ctx, "", 1000)
	require.NoError(t, err)
	assert.Contains(t, ids, o.ID)
}

func TestRepository_KeepsFullPrecision(t *testing.T) {
	ctx := context.Background()
	orders := NewOrderRepository(testPool)
	lineItems := NewLineItemRepository(testPool)

	price := usd("0.1234567")
	fee := usd("0.0000001")

	detached, err := order.NewLineItem(price, 1)
	require.NoError(t, err)
	require.NoError(t, lineItems.Save(ctx, detached, 0))
	stored, err := lineItems.GetByID(ctx, detached.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(stored.UnitPrice()), "got %s", stored.UnitPrice())

	li, err := order.NewLineItem(price, 3)
	require.NoError(t, err)
	o := order.New()
	require.NoError(t, o.AddLineItem(li))
	require.NoError(t, o.AddAdjustment(order.Adjustment{Type: order.AdjustmentFee, Label: "fee", Amount: fee}))
	require.NoError(t, orders.Create(ctx, o))

	got, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	total, ok := got.TotalPrice()
	require.True(t, ok)
	assert.True(t, usd("0.3703702").Equal(total), "got %s", total)

	// The stored total column must match the recomputed one exactly.
	wrote, err := orders.UpdateTotal(ctx, o.ID, &total)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestOrderRepository_NextOrderNumber(t *testing.T) {
	repo := NewOrderRepository(testPool)
	first, err := repo.NextOrderNumber(context.Background())
	require.NoError(t, err)
	second, err := repo.NextOrderNumber(context.Background())
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestCatalogRepositories(t *testing.T) {
	ctx := context.Background()

	products := NewProductRepository(testPool)
	require.NoError(t, products.Upsert(ctx, product.Product{ID: "mug", Name: "Mug", Price: usd("12.50"), Category: "Kitchen"}))
	p, err := products.GetByID(ctx, "mug")
	require.NoError(t, err)
	assert.True(t, usd("12.50").Equal(p.Price))
	_, err = products.GetByID(ctx, "nope")
	require.ErrorIs(t, err, product.ErrNotFound)

	coupons := NewCouponRepository(testPool)
	require.NoError(t, coupons.Upsert(ctx, coupon.Rule{
		Code: "TENOFF", DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(10), Description: "10% off",
	}))
	rule, err := coupons.FindByCode(ctx, "tenoff")
	require.NoError(t, err)
	assert.Equal(t, coupon.DiscountPercentage, rule.DiscountType)
	require.NoError(t, coupons.IncrementUses(ctx, rule.Code))
	rule, err = coupons.FindByCode(ctx, "TENOFF")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Uses)

	_, err = NewStoreRepository(testPool).GetByID(ctx, 99)
	require.ErrorIs(t, err, store.ErrNotFound)
	profile, err := NewCustomerRepository(testPool).GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "GB", profile.CountryCode)
}
