package interfaces

import (
	"context"

	"github.com/commercelens/foresight-go/pkg/models"
)

// OrderSource supplies the order history the engine trains and forecasts
// from. Implementations own pagination, retries and freshness; the engine
// only sees the materialized slice.
type OrderSource interface {
	// CustomerOrders returns per-customer orders for CLV training and
	// scoring.
	CustomerOrders(ctx context.Context) ([]models.CustomerOrder, error)

	// OrderRecords returns dated order amounts for revenue forecasting.
	OrderRecords(ctx context.Context) ([]models.OrderRecord, error)
}

// BehaviorSource supplies pre-aggregated customer behavior, for callers
// that already maintain RFM aggregates and do not want the engine to
// re-derive them from raw orders.
type BehaviorSource interface {
	BehaviorRecords(ctx context.Context) ([]models.BehaviorRecord, error)
}
