package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/commercelens/foresight-go/internal/models"
	"github.com/commercelens/foresight-go/pkg/interfaces"
)

// fileOrderSource reads the order history from a JSON file once and serves
// both the CLV and forecasting views of it.
type fileOrderSource struct {
	path string

	once   sync.Once
	orders []models.CustomerOrder
	err    error
}

var _ interfaces.OrderSource = (*fileOrderSource)(nil)

func newFileOrderSource(path string) *fileOrderSource {
	return &fileOrderSource{path: path}
}

func (s *fileOrderSource) load() error {
	s.once.Do(func() {
		data, err := os.ReadFile(s.path)
		if err != nil {
			s.err = fmt.Errorf("failed to read order file %s: %w", s.path, err)
			return
		}
		if err := json.Unmarshal(data, &s.orders); err != nil {
			s.err = fmt.Errorf("failed to parse order file %s: %w", s.path, err)
		}
	})
	return s.err
}

// CustomerOrders returns the order history sorted by order date.
func (s *fileOrderSource) CustomerOrders(ctx context.Context) ([]models.CustomerOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	orders := make([]models.CustomerOrder, len(s.orders))
	copy(orders, s.orders)
	sort.SliceStable(orders, func(a, b int) bool {
		return orders[a].OrderDate.Before(orders[b].OrderDate)
	})
	return orders, nil
}

// OrderRecords projects the order history down to dated amounts.
func (s *fileOrderSource) OrderRecords(ctx context.Context) ([]models.OrderRecord, error) {
	orders, err := s.CustomerOrders(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]models.OrderRecord, len(orders))
	for i, o := range orders {
		records[i] = models.OrderRecord{OrderDate: o.OrderDate, Amount: o.Amount}
	}
	return records, nil
}
