package interfaces_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercelens/foresight-go/pkg/interfaces"
	"github.com/commercelens/foresight-go/pkg/models"
)

// staticOrderSource implements OrderSource the way a collaborator module
// outside this repository would: only exported packages in its method
// signatures, no internal imports.
type staticOrderSource struct {
	orders []models.CustomerOrder
}

func (s *staticOrderSource) CustomerOrders(ctx context.Context) ([]models.CustomerOrder, error) {
	return s.orders, nil
}

func (s *staticOrderSource) OrderRecords(ctx context.Context) ([]models.OrderRecord, error) {
	records := make([]models.OrderRecord, len(s.orders))
	for i, o := range s.orders {
		records[i] = models.OrderRecord{OrderDate: o.OrderDate, Amount: o.Amount}
	}
	return records, nil
}

type staticBehaviorSource struct {
	records []models.BehaviorRecord
}

func (s *staticBehaviorSource) BehaviorRecords(ctx context.Context) ([]models.BehaviorRecord, error) {
	return s.records, nil
}

// TestSources_ImplementableFromExportedPackages tests that both source
// interfaces can be satisfied using pkg/models types alone.
func TestSources_ImplementableFromExportedPackages(t *testing.T) {
	var _ interfaces.OrderSource = (*staticOrderSource)(nil)
	var _ interfaces.BehaviorSource = (*staticBehaviorSource)(nil)

	source := &staticOrderSource{orders: []models.CustomerOrder{{
		CustomerID: "c1",
		Platform:   "shopify",
		OrderDate:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromFloat(49.90),
	}}}

	orders, err := source.CustomerOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "c1", orders[0].CustomerID)

	records, err := source.OrderRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, orders[0].Amount.Equal(records[0].Amount))
	assert.Equal(t, orders[0].OrderDate, records[0].OrderDate)

	behavior := &staticBehaviorSource{records: []models.BehaviorRecord{
		{CustomerID: "c1", Platform: "shopify", RecencyDays: 10, Frequency: 3, Monetary: 150},
	}}
	batch, err := behavior.BehaviorRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}
