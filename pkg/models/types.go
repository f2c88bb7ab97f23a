// Package models holds the data types that cross the engine's public
// boundary. Collaborator modules implement pkg/interfaces in terms of these
// types without importing internal packages.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerOrder is a single completed order supplied by the collaborator
// layer. Amounts arrive as decimals from the billing side and are converted
// to float64 only at the statistical boundary.
type CustomerOrder struct {
	CustomerID string          `json:"customer_id"`
	Platform   string          `json:"platform"`
	OrderDate  time.Time       `json:"order_date"`
	Amount     decimal.Decimal `json:"amount"`
}

// BehaviorRecord is one customer's aggregated purchase history. Records are
// immutable once read; the engine never mutates them.
type BehaviorRecord struct {
	CustomerID             string  `json:"customer_id"`
	Platform               string  `json:"platform"`
	Segment                string  `json:"segment,omitempty"`
	RecencyDays            float64 `json:"recency_days"`             // days since last order, >= 0
	Frequency              float64 `json:"frequency"`                // completed order count, >= 1
	Monetary               float64 `json:"monetary"`                 // total spend, >= 0
	DaysSinceFirstPurchase float64 `json:"days_since_first_purchase"` // 0 means unknown, falls back to recency
}

// OrderRecord is a dated revenue amount from the order history, the input
// unit of the trend forecaster.
type OrderRecord struct {
	OrderDate time.Time       `json:"order_date"`
	Amount    decimal.Decimal `json:"amount"`
}
