package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gitaditya567/itskillhub/internal/payment"
	"github.com/gitaditya567/itskillhub/internal/util"
	"github.com/gitaditya567/itskillhub/pkg/domain"
	"github.com/gitaditya567/itskillhub/pkg/events"
)

// Checkout is what the client needs to open the payment widget.
type Checkout struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
	OrderID  string `json:"orderId"`
	Key      string `json:"key"`
}

// VerifyInput is the checkout result posted back by the client.
type VerifyInput struct {
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
	// OrderID is the internal order id; optional.
	OrderID string
}

// OrderView is an order with its book embedded. Book is nil once the book
// has been deleted.
type OrderView struct {
	domain.Order
	Book *domain.Book `json:"book"`
}

// CreateOrder opens a gateway order for bookID and records it as pending.
func (a *App) CreateOrder(ctx context.Context, user domain.User, bookID string) (Checkout, error) {
	book, err := a.GetBook(bookID)
	if err != nil {
		return Checkout{}, err
	}
	now := a.now().UTC()
	gw, err := a.payments.CreateOrder(ctx, payment.CreateOrderRequest{
		Amount:   book.Price * 100,
		Currency: a.currency,
		Receipt:  fmt.Sprintf("receipt_order_%d", now.UnixMilli()),
	})
	if err != nil {
		util.LoggerFromContext(ctx).Error("gateway order failed", "book_id", book.ID, "user_id", user.ID, "err", err)
		return Checkout{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	currency := gw.Currency
	if currency == "" {
		currency = a.currency
	}
	amount := gw.Amount
	if amount == 0 {
		amount = book.Price * 100
	}
	order := domain.Order{
		ID:              util.NewID(),
		UserID:          user.ID,
		BookID:          book.ID,
		ProviderOrderID: gw.ID,
		Amount:          amount,
		Currency:        currency,
		Status:          domain.OrderPending,
		ProviderPayload: gw.Raw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.store.CreateOrder(order); err != nil {
		return Checkout{}, fmt.Errorf("save order: %w", err)
	}
	return Checkout{
		ID:       gw.ID,
		Currency: currency,
		Amount:   amount,
		OrderID:  order.ID,
		Key:      a.payments.KeyID(),
	}, nil
}

// VerifyPayment checks the gateway signature and settles the order. A
// second verification of a completed order succeeds without side effects.
// With an invalid signature nothing is changed.
func (a *App) VerifyPayment(ctx context.Context, user domain.User, in VerifyInput) (domain.Order, error) {
	in.ProviderOrderID = strings.TrimSpace(in.ProviderOrderID)
	in.ProviderPaymentID = strings.TrimSpace(in.ProviderPaymentID)
	in.OrderID = strings.TrimSpace(in.OrderID)
	if !a.payments.VerifySignature(in.ProviderOrderID, in.ProviderPaymentID, in.Signature) {
		return domain.Order{}, ErrInvalidSignature
	}
	order, err := a.findOrder(in)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != user.ID || order.ProviderOrderID != in.ProviderOrderID {
		return domain.Order{}, ErrOrderMismatch
	}

	v, err, _ := a.verifyGroup.Do(order.ID, func() (any, error) {
		return a.settle(ctx, order, in.ProviderPaymentID)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return v.(domain.Order), nil
}

func (a *App) findOrder(in VerifyInput) (domain.Order, error) {
	var (
		order domain.Order
		ok    bool
		err   error
	)
	if in.OrderID != "" {
		order, ok, err = a.store.GetOrder(in.OrderID)
	} else {
		order, ok, err = a.store.GetOrderByProviderID(in.ProviderOrderID)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("fetch order: %w", err)
	}
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (a *App) settle(ctx context.Context, order domain.Order, paymentID string) (domain.Order, error) {
	settledAt := a.now().UTC()
	completed, err := a.store.CompleteOrder(order.ID, paymentID, settledAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("complete order: %w", err)
	}
	latest, ok, err := a.store.GetOrder(order.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("fetch order: %w", err)
	}
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	if latest.Status != domain.OrderCompleted {
		return domain.Order{}, fmt.Errorf("%w: order %s is %s", ErrOrderNotPayable, latest.ID, latest.Status)
	}
	if !completed {
		// Settled by an earlier call; make sure the purchase exists.
		if err := a.store.AddPurchasedBook(latest.UserID, latest.BookID); err != nil {
			return domain.Order{}, fmt.Errorf("record purchase: %w", err)
		}
		return latest, nil
	}
	a.publishPurchase(ctx, latest, settledAt)
	return latest, nil
}

// publishPurchase is best effort; a broker outage never fails a settled payment.
func (a *App) publishPurchase(ctx context.Context, order domain.Order, at time.Time) {
	evt := events.PurchaseCompleted{
		OrderID:           order.ID,
		UserID:            order.UserID,
		BookID:            order.BookID,
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: order.ProviderPaymentID,
		Amount:            order.Amount,
		Currency:          order.Currency,
		CompletedAt:       at,
	}
	if err := a.events.PublishPurchase(ctx, evt); err != nil {
		util.LoggerFromContext(ctx).Warn("publish purchase event failed", "order_id", order.ID, "err", err)
	}
}

// MyOrders lists the user's orders, newest first, with books embedded.
func (a *App) MyOrders(user domain.User) ([]OrderView, error) {
	orders, err := a.store.ListOrdersByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	books := make(map[string]*domain.Book)
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		book, seen := books[o.BookID]
		if !seen {
			b, err := a.GetBook(o.BookID)
			switch {
			case err == nil:
				book = &b
			case !errors.Is(err, ErrBookNotFound):
				return nil, err
			}
			books[o.BookID] = book
		}
		out = append(out, OrderView{Order: o, Book: book})
	}
	return out, nil
}

// ListUsers returns every account; admin only at the transport layer.
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}
