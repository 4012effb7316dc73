package service

import (
	"context"
	"fmt"

	"velvet-pos/internal/clock"
	"velvet-pos/internal/domain"
	"velvet-pos/internal/repository"

	"github.com/shopspring/decimal"
)

const DefaultAnalyticsDays = 30

// SalesReport aggregates the daily summaries of a period
type SalesReport struct {
	Period                  string                 `json:"period"`
	TotalSales              decimal.Decimal        `json:"total_sales"`
	TotalTransactions       int                    `json:"total_transactions"`
	AverageDailySales       decimal.Decimal        `json:"average_daily_sales"`
	AverageTransactionValue decimal.Decimal        `json:"average_transaction_value"`
	DailyBreakdown          []*domain.DailySummary `json:"daily_breakdown"`
}

// AnalyticsService reports on committed sales
type AnalyticsService interface {
	SalesSummary(ctx context.Context, storeID string, days int) (*SalesReport, error)
}

type analyticsService struct {
	summaries repository.SummaryRepository
	configs   repository.ConfigRepository
	clock     clock.Clock
}

// NewAnalyticsService creates a new instance of AnalyticsService
func NewAnalyticsService(
	summaries repository.SummaryRepository,
	configs repository.ConfigRepository,
	clk clock.Clock,
) AnalyticsService {
	return &analyticsService{
		summaries: summaries,
		configs:   configs,
		clock:     clk,
	}
}

// SalesSummary covers the summaries dated within the last days days of the
// store's local calendar.
func (s *analyticsService) SalesSummary(ctx context.Context, storeID string, days int) (*SalesReport, error) {
	if days <= 0 {
		days = DefaultAnalyticsDays
	}

	cfg, err := s.configs.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	cutoff := s.clock.Now().In(cfg.Location()).AddDate(0, 0, -days).Format(dateLayout)

	summaries, err := s.summaries.ListSince(ctx, storeID, cutoff)
	if err != nil {
		return nil, err
	}

	report := &SalesReport{
		Period:                  fmt.Sprintf("Last %d days", days),
		TotalSales:              decimal.Zero,
		AverageDailySales:       decimal.Zero,
		AverageTransactionValue: decimal.Zero,
		DailyBreakdown:          summaries,
	}
	for _, summary := range summaries {
		report.TotalSales = report.TotalSales.Add(summary.TotalSales)
		report.TotalTransactions += summary.TransactionCount
	}
	report.TotalSales = domain.RoundMoney(report.TotalSales)

	if len(summaries) > 0 {
		report.AverageDailySales = domain.RoundMoney(report.TotalSales.Div(decimal.NewFromInt(int64(len(summaries)))))
	}
	if report.TotalTransactions > 0 {
		report.AverageTransactionValue = domain.RoundMoney(report.TotalSales.Div(decimal.NewFromInt(int64(report.TotalTransactions))))
	}

	return report, nil
}
