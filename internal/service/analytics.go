package service

import (
	"context"
	"fmt"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultAnalyticsPeriodDays = 30
	maxAnalyticsPeriodDays     = 3650
	analyticsTopN              = 10
)

// AnalyticsService reports sales over paid orders for the admin dashboard
type AnalyticsService struct {
	store  Store
	now    clock
	logger *zap.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(store Store) *AnalyticsService {
	return &AnalyticsService{
		store:  store,
		now:    systemClock,
		logger: util.GetLogger(),
	}
}

// SalesReport summarises PAID orders created in the last periodDays days
func (s *AnalyticsService) SalesReport(ctx context.Context, periodDays int) (*models.SalesReport, error) {
	ctx, span := util.StartSpan(ctx, "AnalyticsService.SalesReport",
		attribute.Int("period_days", periodDays))
	defer span.End()

	if periodDays <= 0 || periodDays > maxAnalyticsPeriodDays {
		return nil, apperr.Validation("period must be between 1 and %d days", maxAnalyticsPeriodDays)
	}
	since := s.now().AddDate(0, 0, -periodDays)

	overview, err := s.store.SalesOverview(ctx, since)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	overview.AverageOrderValue = decimal.Zero
	if overview.TotalOrders > 0 {
		overview.AverageOrderValue = overview.TotalRevenue.
			Div(decimal.NewFromInt(int64(overview.TotalOrders))).Round(2)
	}

	products, err := s.store.TopProducts(ctx, since, analyticsTopN)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	customers, err := s.store.TopCustomers(ctx, since, analyticsTopN)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("sales report: %w", err)
	}

	return &models.SalesReport{
		PeriodDays:   periodDays,
		Since:        since,
		Overview:     *overview,
		TopProducts:  products,
		TopCustomers: customers,
	}, nil
}
