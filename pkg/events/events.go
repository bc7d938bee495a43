// Package events publishes storefront domain events for downstream consumers.
package events

import (
	"context"
	"time"
)

// TypePurchaseCompleted is emitted once per order that settles.
const TypePurchaseCompleted = "purchase.completed"

// PurchaseCompleted describes a settled order.
type PurchaseCompleted struct {
	OrderID           string    `json:"orderId"`
	UserID            string    `json:"userId"`
	BookID            string    `json:"bookId"`
	ProviderOrderID   string    `json:"providerOrderId"`
	ProviderPaymentID string    `json:"providerPaymentId"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	CompletedAt       time.Time `json:"completedAt"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishPurchase(ctx context.Context, evt PurchaseCompleted) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishPurchase(context.Context, PurchaseCompleted) error { return nil }
func (Nop) Close() error                                             { return nil }
