package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"velvet-pos/internal/clock"
	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
	"velvet-pos/internal/metrics"
	"velvet-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultSaleMaxAttempts = 10
	DefaultPaymentMethod   = "cash"

	txIDLayout   = "20060102_150405"
	dateLayout   = "2006-01-02"
	timeLayout   = "15:04:05"
	txSuffixSize = 8
)

// DefaultTaxRate applies to stores whose configuration has no tax_rate.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// SaleService processes sales and reads back the resulting transactions
type SaleService interface {
	ProcessSale(ctx context.Context, storeID string, cart *domain.Cart, actor domain.Actor) (*SaleResult, error)
	GetTransaction(ctx context.Context, storeID, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, storeID string, limit int) ([]*domain.Transaction, error)
}

// SaleResult is a committed (or replayed) sale. ChangeDue is not persisted.
type SaleResult struct {
	Transaction *domain.Transaction
	ChangeDue   decimal.Decimal
	// Replayed is set when the idempotency key matched an earlier sale.
	Replayed bool
}

// SaleConfig tunes the conflict retry loop.
type SaleConfig struct {
	MaxAttempts int
	// DefaultTaxRate overrides the package default when valid.
	DefaultTaxRate decimal.NullDecimal
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
}

func (c SaleConfig) withDefaults() SaleConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultSaleMaxAttempts
	}
	if !c.DefaultTaxRate.Valid {
		c.DefaultTaxRate = decimal.NewNullDecimal(DefaultTaxRate)
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 250 * time.Millisecond
	}
	return c
}

type saleService struct {
	store        ledger.Store
	configs      repository.ConfigRepository
	transactions repository.TransactionRepository
	clock        clock.Clock
	cfg          SaleConfig
	metrics      *metrics.SaleMetrics
	logger       *zap.Logger
	newSuffix    func() string
}

// NewSaleService creates a new instance of SaleService. The ledger store is
// used directly so that stock, the transaction record, the daily summary and
// the idempotency marker can be committed together.
func NewSaleService(
	store ledger.Store,
	configs repository.ConfigRepository,
	transactions repository.TransactionRepository,
	clk clock.Clock,
	cfg SaleConfig,
	saleMetrics *metrics.SaleMetrics,
	logger *zap.Logger,
) SaleService {
	return &saleService{
		store:        store,
		configs:      configs,
		transactions: transactions,
		clock:        clk,
		cfg:          cfg.withDefaults(),
		metrics:      saleMetrics,
		logger:       logger.Named("sales"),
		newSuffix:    randomSuffix,
	}
}

func randomSuffix() string {
	return uuid.New().String()[:txSuffixSize]
}

// lineDemand is the total quantity requested for one product.
type lineDemand struct {
	productID string
	name      string
	quantity  int
}

// ProcessSale validates the cart, prices it, and commits the stock
// decrements, the transaction, the daily summary and the idempotency marker
// as one conditional ledger write. A commit that loses a race is retried
// from fresh reads.
func (s *saleService) ProcessSale(ctx context.Context, storeID string, cart *domain.Cart, actor domain.Actor) (*SaleResult, error) {
	start := time.Now()
	result, err := s.processSale(ctx, storeID, cart, actor)

	outcome := outcomeFor(err)
	if err == nil && result.Replayed {
		outcome = metrics.OutcomeReplayed
	}
	s.metrics.ObserveSale(storeID, outcome, time.Since(start))

	return result, err
}

func (s *saleService) processSale(ctx context.Context, storeID string, cart *domain.Cart, actor domain.Actor) (*SaleResult, error) {
	if err := ValidateCart(cart); err != nil {
		return nil, err
	}

	var idemPath string
	if cart.IdempotencyKey != "" {
		p, err := repository.IdempotencyPath(storeID, cart.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid idempotency key", ErrInvalidCart)
		}
		idemPath = p
	}

	storeCfg, err := s.configs.Get(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}

	taxRate := s.cfg.DefaultTaxRate.Decimal
	if storeCfg.TaxRate.Valid {
		taxRate = storeCfg.TaxRate.Decimal
	}
	if err := ValidateTaxRate(taxRate); err != nil {
		return nil, err
	}

	totals := ComputeTotals(cart.Items, taxRate, cart.Discount)
	if totals.Total.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeTotal, totals.Total.StringFixed(2))
	}

	demand, err := aggregateDemand(cart.Items)
	if err != nil {
		return nil, err
	}
	loc := storeCfg.Location()

	backoff := retry.NewExponential(s.cfg.BaseBackoff)
	backoff = retry.WithJitterPercent(25, backoff)
	backoff = retry.WithCappedDuration(s.cfg.MaxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(s.cfg.MaxAttempts-1), backoff)

	var (
		result   *SaleResult
		attempts int
	)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		res, err := s.attempt(ctx, storeID, cart, actor, demand, totals, loc, idemPath)
		if errors.Is(err, ledger.ErrConflict) {
			s.metrics.ObserveConflict(storeID)
			s.logger.Debug("Sale commit conflicted, retrying",
				zap.String("store_id", storeID),
				zap.Int("attempt", attempts),
			)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			s.logger.Warn("Sale abandoned after repeated conflicts",
				zap.String("store_id", storeID),
				zap.Int("attempts", attempts),
			)
			return nil, fmt.Errorf("%w: sale not committed after %d attempts: %w", ErrStoreUnreachable, attempts, ledger.ErrConflict)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && !errors.Is(err, ErrStoreUnreachable) {
			return nil, fmt.Errorf("%w: sale interrupted after %d attempts: %w", ErrStoreUnreachable, attempts, err)
		}
		return nil, err
	}

	if result.Replayed {
		s.logger.Info("Replayed transaction for idempotency key",
			zap.String("store_id", storeID),
			zap.String("transaction_id", result.Transaction.ID),
		)
		return result, nil
	}

	s.metrics.ObserveCommit(storeID, result.Transaction.Total, attempts)
	s.logger.Info("Created transaction",
		zap.String("store_id", storeID),
		zap.String("transaction_id", result.Transaction.ID),
		zap.String("total", result.Transaction.Total.StringFixed(2)),
		zap.Int("attempts", attempts),
	)

	return result, nil
}

// attempt performs one read-validate-commit pass. It returns
// ledger.ErrConflict when any document it read changed before the commit.
func (s *saleService) attempt(
	ctx context.Context,
	storeID string,
	cart *domain.Cart,
	actor domain.Actor,
	demand []lineDemand,
	totals Totals,
	loc *time.Location,
	idemPath string,
) (*SaleResult, error) {
	if idemPath != "" {
		replay, err := s.replay(ctx, storeID, idemPath)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	writes := make([]ledger.Write, 0, len(demand)+3)

	for _, d := range demand {
		w, err := s.decrementStock(ctx, storeID, d)
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}

	tx := s.newTransaction(cart, actor, totals, loc)

	txPath, err := repository.TransactionPath(storeID, tx.ID)
	if err != nil {
		return nil, err
	}
	txRaw, err := ledger.Marshal(tx)
	if err != nil {
		return nil, err
	}
	writes = append(writes, ledger.Create(txPath, txRaw))

	summaryWrite, err := s.incrementSummary(ctx, storeID, tx)
	if err != nil {
		return nil, err
	}
	writes = append(writes, summaryWrite)

	if idemPath != "" {
		markerRaw, err := ledger.Marshal(domain.IdempotencyMarker{TransactionID: tx.ID, CreatedAt: tx.Timestamp})
		if err != nil {
			return nil, err
		}
		writes = append(writes, ledger.Create(idemPath, markerRaw))
	}

	if err := s.store.Commit(ctx, writes...); err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}

	return &SaleResult{Transaction: tx, ChangeDue: ChangeDue(cart.CashAmount, tx.Total)}, nil
}

// decrementStock reads a product and builds the conditional write that
// lowers its stock. Every other stored field is written back untouched.
func (s *saleService) decrementStock(ctx context.Context, storeID string, d lineDemand) (ledger.Write, error) {
	path, err := repository.ProductPath(storeID, d.productID)
	if err != nil {
		return ledger.Write{}, fmt.Errorf("%w: invalid product id %q", ErrInvalidCart, d.productID)
	}

	doc, err := s.store.Get(ctx, path)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Write{}, &InsufficientStockError{ProductID: d.productID, Name: d.name, Available: 0, Requested: d.quantity}
	}
	if err != nil {
		return ledger.Write{}, fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}

	var product domain.Product
	if err := json.Unmarshal(doc.Value, &product); err != nil {
		return ledger.Write{}, fmt.Errorf("failed to decode product %s: %w", d.productID, err)
	}

	if !product.Active {
		return ledger.Write{}, fmt.Errorf("%w: %s", ErrProductInactive, d.productID)
	}
	if product.Stock < d.quantity {
		name := product.Name
		if name == "" {
			name = d.name
		}
		return ledger.Write{}, &InsufficientStockError{
			ProductID: d.productID,
			Name:      name,
			Available: product.Stock,
			Requested: d.quantity,
		}
	}

	obj, err := ledger.DecodeObject(doc.Value)
	if err != nil {
		return ledger.Write{}, fmt.Errorf("failed to decode product %s: %w", d.productID, err)
	}
	obj["stock"] = product.Stock - d.quantity

	raw, err := ledger.Marshal(obj)
	if err != nil {
		return ledger.Write{}, err
	}
	return ledger.Replace(path, raw, doc.Version), nil
}

// incrementSummary builds the conditional write that adds tx to its date's
// summary, creating the summary for the first sale of the day.
func (s *saleService) incrementSummary(ctx context.Context, storeID string, tx *domain.Transaction) (ledger.Write, error) {
	path, err := repository.SummaryPath(storeID, tx.Date)
	if err != nil {
		return ledger.Write{}, err
	}

	summary := domain.DailySummary{Date: tx.Date}
	version, err := ledger.GetJSON(ctx, s.store, path, &summary)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		version = ledger.MustNotExist
	case err != nil:
		return ledger.Write{}, fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}

	summary.Date = tx.Date
	summary.TransactionCount++
	summary.TotalSales = domain.RoundMoney(summary.TotalSales.Add(tx.Total))

	raw, err := ledger.Marshal(summary)
	if err != nil {
		return ledger.Write{}, err
	}
	return ledger.Replace(path, raw, version), nil
}

func (s *saleService) replay(ctx context.Context, storeID, idemPath string) (*SaleResult, error) {
	var marker domain.IdempotencyMarker
	_, err := ledger.GetJSON(ctx, s.store, idemPath, &marker)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}

	tx, err := s.transactions.FindByID(ctx, storeID, marker.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}

	return &SaleResult{Transaction: tx, ChangeDue: ChangeDue(tx.CashAmount, tx.Total), Replayed: true}, nil
}

func (s *saleService) newTransaction(cart *domain.Cart, actor domain.Actor, totals Totals, loc *time.Location) *domain.Transaction {
	now := s.clock.Now().In(loc)

	paymentMethod := cart.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}

	items := make([]domain.LineItem, len(cart.Items))
	copy(items, cart.Items)

	return &domain.Transaction{
		ID:             fmt.Sprintf("tx_%s_%s", now.Format(txIDLayout), s.newSuffix()),
		Timestamp:      now,
		Date:           now.Format(dateLayout),
		Time:           now.Format(timeLayout),
		StaffID:        actor.UserID,
		StaffName:      cart.StaffName,
		CustomerID:     cart.CustomerID,
		Items:          items,
		Subtotal:       totals.Subtotal,
		TaxRate:        totals.TaxRate,
		TaxAmount:      totals.TaxAmount,
		Discount:       totals.Discount,
		Total:          totals.Total,
		PaymentMethod:  paymentMethod,
		CashAmount:     cart.CashAmount,
		CardAmount:     cart.CardAmount,
		Notes:          cart.Notes,
		IdempotencyKey: cart.IdempotencyKey,
	}
}

func (s *saleService) GetTransaction(ctx context.Context, storeID, id string) (*domain.Transaction, error) {
	return s.transactions.FindByID(ctx, storeID, id)
}

func (s *saleService) ListTransactions(ctx context.Context, storeID string, limit int) ([]*domain.Transaction, error) {
	return s.transactions.ListRecent(ctx, storeID, limit)
}

// aggregateDemand sums quantities per product, keeping first-seen order.
func aggregateDemand(items []domain.LineItem) ([]lineDemand, error) {
	index := make(map[string]int, len(items))
	demand := make([]lineDemand, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			if item.Quantity > math.MaxInt-demand[i].quantity {
				return nil, fmt.Errorf("%w: quantity of %s overflows", ErrInvalidCart, item.ProductID)
			}
			demand[i].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(demand)
		demand = append(demand, lineDemand{productID: item.ProductID, name: item.Name, quantity: item.Quantity})
	}
	return demand, nil
}

func outcomeFor(err error) string {
	var stockErr *InsufficientStockError
	switch {
	case err == nil:
		return metrics.OutcomeCompleted
	case errors.Is(err, ErrEmptyCart):
		return metrics.OutcomeEmptyCart
	case errors.Is(err, ErrInvalidCart):
		return metrics.OutcomeInvalidCart
	case errors.As(err, &stockErr):
		return metrics.OutcomeInsufficientStock
	case errors.Is(err, ErrProductInactive):
		return metrics.OutcomeInactiveProduct
	case errors.Is(err, ErrNegativeTotal):
		return metrics.OutcomeNegativeTotal
	case errors.Is(err, ErrInvalidTaxRate):
		return metrics.OutcomeInvalidTaxRate
	case errors.Is(err, ledger.ErrConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeUnavailable
	}
}
