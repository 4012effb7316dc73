package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
)

var ErrSummaryNotFound = errors.New("daily summary not found")

// SummaryRepository reads the per-date aggregates maintained by sales.
type SummaryRepository interface {
	FindByDate(ctx context.Context, storeID, date string) (*domain.DailySummary, error)
	// ListSince returns summaries dated on or after since (YYYY-MM-DD),
	// oldest first.
	ListSince(ctx context.Context, storeID, since string) ([]*domain.DailySummary, error)
}

type summaryRepository struct {
	store ledger.Store
}

// NewSummaryRepository creates a new instance of SummaryRepository
func NewSummaryRepository(store ledger.Store) SummaryRepository {
	return &summaryRepository{store: store}
}

func (r *summaryRepository) FindByDate(ctx context.Context, storeID, date string) (*domain.DailySummary, error) {
	path, err := SummaryPath(storeID, date)
	if err != nil {
		return nil, err
	}

	summary := &domain.DailySummary{}
	if _, err := ledger.GetJSON(ctx, r.store, path, summary); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrSummaryNotFound
		}
		return nil, fmt.Errorf("failed to find daily summary: %w", err)
	}

	return summary, nil
}

func (r *summaryRepository) ListSince(ctx context.Context, storeID, since string) ([]*domain.DailySummary, error) {
	parent, err := storePath(storeID, summariesColl)
	if err != nil {
		return nil, err
	}

	docs, err := r.store.List(ctx, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily summaries: %w", err)
	}

	summaries := []*domain.DailySummary{}
	for _, doc := range docs {
		date := ledger.Base(doc.Path)
		if date < since {
			continue
		}
		summary := &domain.DailySummary{}
		if err := json.Unmarshal(doc.Value, summary); err != nil {
			return nil, fmt.Errorf("failed to decode daily summary %s: %w", date, err)
		}
		if summary.Date == "" {
			summary.Date = date
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}
