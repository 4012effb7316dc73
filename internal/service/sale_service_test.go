package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"velvet-pos/internal/clock"
	"velvet-pos/internal/database"
	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
	"velvet-pos/internal/ledger/memory"
	"velvet-pos/internal/ledger/sqlstore"
	"velvet-pos/internal/metrics"
	"velvet-pos/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const saleStoreID = "default"

var saleTime = time.Date(2026, 3, 14, 15, 4, 5, 0, time.UTC)

type saleFixture struct {
	store        ledger.Store
	products     repository.ProductRepository
	configs      repository.ConfigRepository
	summaries    repository.SummaryRepository
	transactions repository.TransactionRepository
	clock        *clock.FakeClock
	service      SaleService
}

func newSaleFixture(t *testing.T, store ledger.Store, cfg SaleConfig) *saleFixture {
	t.Helper()

	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Millisecond
	}

	f := &saleFixture{
		store:        store,
		products:     repository.NewProductRepository(store),
		configs:      repository.NewConfigRepository(store),
		summaries:    repository.NewSummaryRepository(store),
		transactions: repository.NewTransactionRepository(store),
		clock:        clock.NewFakeClock(saleTime),
	}
	f.service = NewSaleService(store, f.configs, f.transactions, f.clock, cfg, nil, zap.NewNop())
	return f
}

func newSQLiteLedger(t *testing.T) ledger.Store {
	t.Helper()

	db, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db, sqlstore.SQLite, zap.NewNop()))

	s := sqlstore.New(db, sqlstore.SQLite)
	t.Cleanup(func() { s.Close() })
	return s
}

func (f *saleFixture) seedProduct(t *testing.T, id, price string, stock int) {
	t.Helper()
	require.NoError(t, f.products.Create(context.Background(), saleStoreID, &domain.Product{
		ID:       id,
		Name:     "Product " + id,
		SKU:      "SKU-" + id,
		Price:    decimal.RequireFromString(price),
		Category: domain.DefaultCategory,
		Stock:    stock,
		Active:   true,
	}))
}

func (f *saleFixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), saleStoreID, id)
	require.NoError(t, err)
	return p.Stock
}

func cartOf(items ...domain.LineItem) *domain.Cart {
	return &domain.Cart{Items: items, PaymentMethod: "cash"}
}

func line(id, price string, qty int) domain.LineItem {
	return domain.LineItem{ProductID: id, Name: "Product " + id, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

var cashier = domain.Actor{UserID: "user_1", StoreID: saleStoreID, Role: domain.RoleStaff}

func TestProcessSaleScenario(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "24.99", 50)
	ctx := context.Background()

	cart := cartOf(line("p1", "24.99", 2))
	cart.CashAmount = decimal.RequireFromString("60")

	result, err := f.service.ProcessSale(ctx, saleStoreID, cart, cashier)
	require.NoError(t, err)

	tx := result.Transaction
	assert.True(t, tx.Subtotal.Equal(decimal.RequireFromString("49.98")), "subtotal %s", tx.Subtotal)
	assert.True(t, tx.TaxRate.Equal(decimal.RequireFromString("0.08")), "tax rate %s", tx.TaxRate)
	assert.True(t, tx.TaxAmount.Equal(decimal.RequireFromString("4.00")), "tax %s", tx.TaxAmount)
	assert.True(t, tx.Total.Equal(decimal.RequireFromString("53.98")), "total %s", tx.Total)
	assert.True(t, result.ChangeDue.Equal(decimal.RequireFromString("6.02")), "change %s", result.ChangeDue)
	assert.False(t, result.Replayed)
	assert.Equal(t, "user_1", tx.StaffID)
	assert.Equal(t, "cash", tx.PaymentMethod)

	assert.Equal(t, 48, f.stock(t, "p1"))

	stored, err := f.service.GetTransaction(ctx, saleStoreID, tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(tx.Total))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)

	summary, err := f.summaries.FindByDate(ctx, saleStoreID, "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TransactionCount)
	assert.True(t, summary.TotalSales.Equal(decimal.RequireFromString("53.98")), "summary %s", summary.TotalSales)
}

func TestProcessSaleInsufficientStock(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "24.99", 3)
	ctx := context.Background()

	_, err := f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "24.99", 5)), cashier)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, "insufficient stock for Product p1. Available: 3, requested: 5", stockErr.Error())

	assert.Equal(t, 3, f.stock(t, "p1"))

	txs, err := f.service.ListTransactions(ctx, saleStoreID, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = f.summaries.FindByDate(ctx, saleStoreID, "2026-03-14")
	assert.ErrorIs(t, err, repository.ErrSummaryNotFound)
}

func TestProcessSaleLeavesOtherProductsUntouchedOnFailure(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "10.00", 10)
	f.seedProduct(t, "p2", "5.00", 1)

	_, err := f.service.ProcessSale(context.Background(), saleStoreID,
		cartOf(line("p1", "10.00", 4), line("p2", "5.00", 2)), cashier)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p2", stockErr.ProductID)
	assert.Equal(t, 10, f.stock(t, "p1"))
	assert.Equal(t, 1, f.stock(t, "p2"))
}

func TestProcessSaleAggregatesRepeatedLines(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "10.00", 3)

	_, err := f.service.ProcessSale(context.Background(), saleStoreID,
		cartOf(line("p1", "10.00", 2), line("p1", "10.00", 2)), cashier)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, f.stock(t, "p1"))

	result, err := f.service.ProcessSale(context.Background(), saleStoreID,
		cartOf(line("p1", "10.00", 1), line("p1", "10.00", 2)), cashier)
	require.NoError(t, err)
	assert.Len(t, result.Transaction.Items, 2)
	assert.Equal(t, 0, f.stock(t, "p1"))
}

func TestProcessSaleMissingProduct(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})

	_, err := f.service.ProcessSale(context.Background(), saleStoreID, cartOf(line("ghost", "1.00", 1)), cashier)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)
	assert.Equal(t, 1, stockErr.Requested)
}

func TestProcessSaleInactiveProduct(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "10.00", 5)
	ctx := context.Background()

	_, err := f.products.Update(ctx, saleStoreID, "p1", map[string]any{"active": false})
	require.NoError(t, err)

	_, err = f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "10.00", 1)), cashier)
	assert.ErrorIs(t, err, ErrProductInactive)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestProcessSaleRejectsInvalidCarts(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	ctx := context.Background()

	_, err := f.service.ProcessSale(ctx, saleStoreID, &domain.Cart{}, cashier)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "1.00", 0)), cashier)
	assert.ErrorIs(t, err, ErrInvalidCart)

	cart := cartOf(line("p1", "1.00", 1))
	cart.IdempotencyKey = "bad/key"
	_, err = f.service.ProcessSale(ctx, saleStoreID, cart, cashier)
	assert.ErrorIs(t, err, ErrInvalidCart)
}

func TestProcessSaleRejectsNegativeTotal(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "5.00", 5)

	cart := cartOf(line("p1", "5.00", 1))
	cart.Discount = decimal.RequireFromString("10.00")

	_, err := f.service.ProcessSale(context.Background(), saleStoreID, cart, cashier)
	assert.ErrorIs(t, err, ErrNegativeTotal)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestProcessSaleUsesStoreTaxRate(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "20.00", 5)
	ctx := context.Background()

	require.NoError(t, f.configs.Set(ctx, saleStoreID, &domain.StoreConfig{
		Name:    "Velvet",
		TaxRate: decimal.NewNullDecimal(decimal.RequireFromString("0.1")),
	}))

	result, err := f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "20.00", 1)), cashier)
	require.NoError(t, err)
	assert.True(t, result.Transaction.TaxAmount.Equal(decimal.RequireFromString("2")))
	assert.True(t, result.Transaction.Total.Equal(decimal.RequireFromString("22")))
}

func TestProcessSaleRejectsInvalidTaxRate(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "20.00", 5)
	ctx := context.Background()

	require.NoError(t, f.configs.Set(ctx, saleStoreID, &domain.StoreConfig{
		TaxRate: decimal.NewNullDecimal(decimal.RequireFromString("1.5")),
	}))

	_, err := f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "20.00", 1)), cashier)
	assert.ErrorIs(t, err, ErrInvalidTaxRate)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestProcessSaleTransactionIDUsesStoreTimezone(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "1.00", 10)
	ctx := context.Background()
	f.service.(*saleService).newSuffix = func() string { return "abcdef12" }

	require.NoError(t, f.configs.Set(ctx, saleStoreID, &domain.StoreConfig{Timezone: "America/New_York"}))

	result, err := f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "1.00", 1)), cashier)
	require.NoError(t, err)
	assert.Equal(t, "tx_20260314_110405_abcdef12", result.Transaction.ID)
	assert.Equal(t, "2026-03-14", result.Transaction.Date)
	assert.Equal(t, "11:04:05", result.Transaction.Time)

	// 02:30 UTC on the 15th is still the evening of the 14th in New York.
	f.clock.Set(time.Date(2026, 3, 15, 2, 30, 0, 0, time.UTC))
	f.service.(*saleService).newSuffix = func() string { return "00000002" }

	result, err = f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "1.00", 1)), cashier)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", result.Transaction.Date)

	summary, err := f.summaries.FindByDate(ctx, saleStoreID, "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TransactionCount)
}

func TestProcessSalePreservesUnknownProductFields(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	ctx := context.Background()

	path, err := repository.ProductPath(saleStoreID, "p1")
	require.NoError(t, err)
	require.NoError(t, f.store.Commit(ctx, ledger.Create(path,
		[]byte(`{"id":"p1","name":"Lipstick","price":24.99,"stock":5,"supplier":"Acme","reorder_level":2}`))))

	_, err = f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "24.99", 2)), cashier)
	require.NoError(t, err)

	doc, err := f.store.Get(ctx, path)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":"p1","name":"Lipstick","price":24.99,"stock":3,"supplier":"Acme","reorder_level":2}`,
		string(doc.Value))
}

func TestProcessSaleIdempotentReplay(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "24.99", 50)
	ctx := context.Background()

	cart := cartOf(line("p1", "24.99", 2))
	cart.IdempotencyKey = "register-1-0042"
	cart.CashAmount = decimal.RequireFromString("100")

	first, err := f.service.ProcessSale(ctx, saleStoreID, cart, cashier)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	f.clock.Advance(time.Minute)
	second, err := f.service.ProcessSale(ctx, saleStoreID, cart, cashier)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.True(t, second.ChangeDue.Equal(first.ChangeDue))

	assert.Equal(t, 48, f.stock(t, "p1"))

	summary, err := f.summaries.FindByDate(ctx, saleStoreID, "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TransactionCount)

	txs, err := f.service.ListTransactions(ctx, saleStoreID, 10)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

// conflictingStore loses every commit race.
type conflictingStore struct {
	ledger.Store
	commits atomic.Int32
}

func (s *conflictingStore) Commit(ctx context.Context, writes ...ledger.Write) error {
	s.commits.Add(1)
	return ledger.ErrConflict
}

func TestProcessSaleGivesUpAfterMaxAttempts(t *testing.T) {
	base := memory.New()
	newSaleFixture(t, base, SaleConfig{}).seedProduct(t, "p1", "1.00", 10)

	store := &conflictingStore{Store: base}
	f := newSaleFixture(t, store, SaleConfig{MaxAttempts: 3})

	_, err := f.service.ProcessSale(context.Background(), saleStoreID, cartOf(line("p1", "1.00", 1)), cashier)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnreachable)
	assert.ErrorIs(t, err, ledger.ErrConflict)
	assert.Equal(t, int32(3), store.commits.Load())
	assert.Equal(t, metrics.OutcomeConflict, outcomeFor(err))
}

// unreachableStore fails every read.
type unreachableStore struct {
	ledger.Store
}

func (unreachableStore) Get(ctx context.Context, path string) (ledger.Document, error) {
	return ledger.Document{}, errors.New("connection refused")
}

func TestProcessSaleStoreUnreachable(t *testing.T) {
	f := newSaleFixture(t, unreachableStore{Store: memory.New()}, SaleConfig{})

	_, err := f.service.ProcessSale(context.Background(), saleStoreID, cartOf(line("p1", "1.00", 1)), cashier)
	assert.ErrorIs(t, err, ErrStoreUnreachable)
	assert.Equal(t, metrics.OutcomeUnavailable, outcomeFor(err))
}

// cancelingStore cancels the sale's context while its commit loses a race.
type cancelingStore struct {
	ledger.Store
	cancel context.CancelFunc
}

func (s *cancelingStore) Commit(ctx context.Context, writes ...ledger.Write) error {
	s.cancel()
	return ledger.ErrConflict
}

func TestProcessSaleCanceledWhileRetrying(t *testing.T) {
	base := memory.New()
	newSaleFixture(t, base, SaleConfig{}).seedProduct(t, "p1", "1.00", 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newSaleFixture(t, &cancelingStore{Store: base, cancel: cancel}, SaleConfig{MaxAttempts: 5})

	_, err := f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "1.00", 1)), cashier)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnreachable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, metrics.OutcomeUnavailable, outcomeFor(err))
	assert.Equal(t, 10, f.stock(t, "p1"))
}

// recreatingStore deletes and re-creates a product just before the first
// commit goes through.
type recreatingStore struct {
	ledger.Store
	once     sync.Once
	recreate func()
}

func (s *recreatingStore) Commit(ctx context.Context, writes ...ledger.Write) error {
	s.once.Do(s.recreate)
	return s.Store.Commit(ctx, writes...)
}

func TestProcessSaleRereadsProductRecreatedMidSale(t *testing.T) {
	base := memory.New()
	newSaleFixture(t, base, SaleConfig{}).seedProduct(t, "p1", "10.00", 10)
	products := repository.NewProductRepository(base)

	store := &recreatingStore{Store: base, recreate: func() {
		ctx := context.Background()
		require.NoError(t, products.Delete(ctx, saleStoreID, "p1"))
		require.NoError(t, products.Create(ctx, saleStoreID, &domain.Product{
			ID: "p1", Name: "Product p1", SKU: "SKU-p1", Price: decimal.RequireFromString("10.00"), Stock: 2, Active: true,
		}))
	}}
	f := newSaleFixture(t, store, SaleConfig{})

	_, err := f.service.ProcessSale(context.Background(), saleStoreID, cartOf(line("p1", "10.00", 5)), cashier)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 2, f.stock(t, "p1"))
}

func TestProcessSaleRejectsOverflowingQuantities(t *testing.T) {
	f := newSaleFixture(t, memory.New(), SaleConfig{})
	f.seedProduct(t, "p1", "0.00", 5)

	_, err := f.service.ProcessSale(context.Background(), saleStoreID,
		cartOf(line("p1", "0.00", math.MaxInt), line("p1", "0.00", 1)), cashier)
	assert.ErrorIs(t, err, ErrInvalidCart)
	assert.Equal(t, 5, f.stock(t, "p1"))

	_, err = f.service.ProcessSale(context.Background(), saleStoreID,
		cartOf(line("p1", "0.00", MaxLineQuantity), line("p1", "0.00", MaxLineQuantity)), cashier)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2*MaxLineQuantity, stockErr.Requested)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestAggregateDemandRejectsOverflow(t *testing.T) {
	_, err := aggregateDemand([]domain.LineItem{
		{ProductID: "p1", Quantity: math.MaxInt},
		{ProductID: "p1", Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidCart)

	demand, err := aggregateDemand([]domain.LineItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, demand, 2)
	assert.Equal(t, "p1", demand[0].productID)
	assert.Equal(t, 5, demand[0].quantity)
}

func TestProcessSaleRecordsMetrics(t *testing.T) {
	store := memory.New()
	saleMetrics := metrics.NewSaleMetrics(prometheus.NewRegistry())
	configs := repository.NewConfigRepository(store)
	svc := NewSaleService(store, configs, repository.NewTransactionRepository(store),
		clock.NewFakeClock(saleTime), SaleConfig{}, saleMetrics, zap.NewNop())

	require.NoError(t, repository.NewProductRepository(store).Create(context.Background(), saleStoreID,
		&domain.Product{ID: "p1", Price: decimal.RequireFromString("1.00"), Stock: 1, Active: true}))

	_, err := svc.ProcessSale(context.Background(), saleStoreID, cartOf(line("p1", "1.00", 1)), cashier)
	require.NoError(t, err)
	_, err = svc.ProcessSale(context.Background(), saleStoreID, cartOf(line("p1", "1.00", 1)), cashier)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, metrics.OutcomeInsufficientStock, outcomeFor(err))
}

func TestOutcomeFor(t *testing.T) {
	tests := map[string]error{
		metrics.OutcomeCompleted:       nil,
		metrics.OutcomeEmptyCart:       ErrEmptyCart,
		metrics.OutcomeInvalidCart:     fmt.Errorf("%w: bad", ErrInvalidCart),
		metrics.OutcomeInactiveProduct: fmt.Errorf("%w: p1", ErrProductInactive),
		metrics.OutcomeNegativeTotal:   ErrNegativeTotal,
		metrics.OutcomeInvalidTaxRate:  ErrInvalidTaxRate,
	}
	for want, err := range tests {
		assert.Equal(t, want, outcomeFor(err))
	}
}

// Feature: velvet-pos, Property 1: Sales within stock succeed and decrement stock
// Validates: Requirements 2.1, 2.2
func TestProperty_SalesWithinStockDecrementStock(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stock after a sale equals available minus quantity", prop.ForAll(
		func(q1 int, spare1 int, q2 int, spare2 int) bool {
			f := newSaleFixture(t, memory.New(), SaleConfig{})
			f.seedProduct(t, "p1", "3.50", q1+spare1)
			f.seedProduct(t, "p2", "12.00", q2+spare2)

			_, err := f.service.ProcessSale(context.Background(), saleStoreID,
				cartOf(line("p1", "3.50", q1), line("p2", "12.00", q2)), cashier)
			if err != nil {
				t.Logf("FAIL: sale within stock failed: %v", err)
				return false
			}

			if got := f.stock(t, "p1"); got != spare1 {
				t.Logf("FAIL: p1 stock %d, expected %d", got, spare1)
				return false
			}
			if got := f.stock(t, "p2"); got != spare2 {
				t.Logf("FAIL: p2 stock %d, expected %d", got, spare2)
				return false
			}
			return true
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 50),
		gen.IntRange(1, 20),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: velvet-pos, Property 2: Oversold carts change nothing
// Validates: Requirements 2.1, 2.4
func TestProperty_OversoldCartsChangeNothing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a cart exceeding stock fails and leaves every product untouched", prop.ForAll(
		func(stock1 int, q1 int, stock2 int, excess int) bool {
			if q1 > stock1 {
				q1 = stock1
			}
			f := newSaleFixture(t, memory.New(), SaleConfig{})
			f.seedProduct(t, "p1", "3.50", stock1)
			f.seedProduct(t, "p2", "12.00", stock2)

			_, err := f.service.ProcessSale(context.Background(), saleStoreID,
				cartOf(line("p1", "3.50", q1), line("p2", "12.00", stock2+excess)), cashier)

			var stockErr *InsufficientStockError
			if !errors.As(err, &stockErr) {
				t.Logf("FAIL: expected InsufficientStockError, got %v", err)
				return false
			}
			if stockErr.Available != stock2 || stockErr.Requested != stock2+excess {
				t.Logf("FAIL: wrong error details %+v", stockErr)
				return false
			}

			return f.stock(t, "p1") == stock1 && f.stock(t, "p2") == stock2
		},
		gen.IntRange(1, 50),
		gen.IntRange(1, 50),
		gen.IntRange(0, 50),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: velvet-pos, Property 3: Stored transactions reproduce their total
// Validates: Requirements 2.3
func TestProperty_StoredTransactionsReproduceTotal(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("recomputing a stored transaction gives its total", prop.ForAll(
		func(priceCents int64, qty int, rateBasisPoints int64, discountCents int64) bool {
			f := newSaleFixture(t, memory.New(), SaleConfig{})
			ctx := context.Background()
			price := cents(priceCents).StringFixed(2)
			f.seedProduct(t, "p1", price, qty)

			rate := decimal.New(rateBasisPoints, -4)
			if err := f.configs.Set(ctx, saleStoreID, &domain.StoreConfig{TaxRate: decimal.NewNullDecimal(rate)}); err != nil {
				return false
			}

			cart := cartOf(line("p1", price, qty))
			cart.Discount = decimal.Min(cents(discountCents), cents(priceCents))

			result, err := f.service.ProcessSale(ctx, saleStoreID, cart, cashier)
			if err != nil {
				t.Logf("FAIL: sale failed: %v", err)
				return false
			}

			stored, err := f.service.GetTransaction(ctx, saleStoreID, result.Transaction.ID)
			if err != nil {
				return false
			}

			recomputed := ComputeTotals(stored.Items, stored.TaxRate, stored.Discount)
			if !recomputed.Total.Equal(stored.Total) {
				t.Logf("FAIL: recomputed %s, stored %s", recomputed.Total, stored.Total)
				return false
			}

			formula := stored.Subtotal.Mul(one.Add(stored.TaxRate)).Sub(stored.Discount)
			return stored.Total.Sub(formula).Abs().LessThanOrEqual(cents(1))
		},
		gen.Int64Range(1, 99999),
		gen.IntRange(1, 10),
		gen.Int64Range(0, 2500),
		gen.Int64Range(0, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: velvet-pos, Property 5: Daily summary matches committed sales
// Validates: Requirements 3.1, 3.2
func TestProperty_DailySummaryMatchesSales(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("summary counts every sale and sums their totals", prop.ForAll(
		func(quantities []int) bool {
			f := newSaleFixture(t, memory.New(), SaleConfig{})
			ctx := context.Background()
			f.seedProduct(t, "p1", "7.99", 1000)

			sum := decimal.Zero
			for _, q := range quantities {
				result, err := f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "7.99", q)), cashier)
				if err != nil {
					t.Logf("FAIL: sale failed: %v", err)
					return false
				}
				sum = sum.Add(result.Transaction.Total)
				f.clock.Advance(time.Second)
			}

			summary, err := f.summaries.FindByDate(ctx, saleStoreID, "2026-03-14")
			if err != nil {
				t.Logf("FAIL: summary missing: %v", err)
				return false
			}
			if summary.TransactionCount != len(quantities) {
				t.Logf("FAIL: count %d, expected %d", summary.TransactionCount, len(quantities))
				return false
			}
			return summary.TotalSales.Equal(sum.Round(2))
		},
		gen.SliceOfN(5, gen.IntRange(1, 9)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: velvet-pos, Property 4: Concurrent sales never oversell
// Validates: Requirements 2.4, 2.5, 3.2
func TestConcurrentSalesNeverOversell(t *testing.T) {
	backends := map[string]func(t *testing.T) ledger.Store{
		"memory": func(t *testing.T) ledger.Store { return memory.New() },
		"sqlite": newSQLiteLedger,
	}

	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			const (
				sales = 20
				stock = 7
			)
			f := newSaleFixture(t, newStore(t), SaleConfig{MaxAttempts: sales + 5})
			f.seedProduct(t, "p1", "10.00", stock)
			ctx := context.Background()

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded []*domain.Transaction
				oversold  int
				other     []error
			)
			start := make(chan struct{})
			for i := 0; i < sales; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					result, err := f.service.ProcessSale(ctx, saleStoreID, cartOf(line("p1", "10.00", 1)), cashier)

					mu.Lock()
					defer mu.Unlock()
					var stockErr *InsufficientStockError
					switch {
					case err == nil:
						succeeded = append(succeeded, result.Transaction)
					case errors.As(err, &stockErr):
						oversold++
					default:
						other = append(other, err)
					}
				}()
			}
			close(start)
			wg.Wait()

			require.Empty(t, other)
			assert.Len(t, succeeded, stock)
			assert.Equal(t, sales-stock, oversold)
			assert.Equal(t, 0, f.stock(t, "p1"))

			sum := decimal.Zero
			ids := make(map[string]struct{}, len(succeeded))
			for _, tx := range succeeded {
				sum = sum.Add(tx.Total)
				ids[tx.ID] = struct{}{}
			}
			assert.Len(t, ids, stock)

			summary, err := f.summaries.FindByDate(ctx, saleStoreID, "2026-03-14")
			require.NoError(t, err)
			assert.Equal(t, stock, summary.TransactionCount)
			assert.True(t, summary.TotalSales.Equal(sum.Round(2)), "summary %s, expected %s", summary.TotalSales, sum)

			txs, err := f.service.ListTransactions(ctx, saleStoreID, 0)
			require.NoError(t, err)
			assert.Len(t, txs, stock)
		})
	}
}
