package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gitaditya567/itskillhub/internal/payment"
	"github.com/gitaditya567/itskillhub/pkg/domain"
	"github.com/gitaditya567/itskillhub/pkg/store"
)

func checkout(t *testing.T, env *testEnv, user domain.User, bookID string) Checkout {
	t.Helper()
	c, err := env.app.CreateOrder(context.Background(), user, bookID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return c
}

func signed(c Checkout, paymentID string) VerifyInput {
	return VerifyInput{
		ProviderOrderID:   c.ID,
		ProviderPaymentID: paymentID,
		Signature:         payment.Sign(testGatewaySecret, c.ID, paymentID),
		OrderID:           c.OrderID,
	}
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	book := env.addBook(t, "Go Basics", 499, 3)
	user := env.addUser(t, "reader@example.com")

	c := checkout(t, env, user, book.ID)
	if c.Amount != 49900 || c.Currency != "INR" || c.Key != "rzp_test_key" || c.ID == "" || c.OrderID == "" {
		t.Fatalf("checkout = %+v", c)
	}
	req := env.gateway.orders[0]
	if !strings.HasPrefix(req.Receipt, "receipt_order_") || len(req.Receipt) > 40 {
		t.Fatalf("receipt = %q", req.Receipt)
	}
	order, ok, err := env.store.GetOrder(c.OrderID)
	if err != nil || !ok {
		t.Fatalf("order not stored: ok=%v err=%v", ok, err)
	}
	if order.Status != domain.OrderPending || order.ProviderOrderID != c.ID || order.UserID != user.ID {
		t.Fatalf("stored order = %+v", order)
	}
	if len(order.ProviderPayload) == 0 {
		t.Fatalf("provider payload not kept")
	}
}

func TestCreateOrderUnknownBook(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "reader@example.com")
	if _, err := env.app.CreateOrder(context.Background(), user, "missing"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("err = %v, want ErrBookNotFound", err)
	}
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	book := env.addBook(t, "Go Basics", 499, 3)
	user := env.addUser(t, "reader@example.com")
	env.gateway.err = &payment.APIError{Status: 401, Description: "Authentication failed"}
	if _, err := env.app.CreateOrder(context.Background(), user, book.ID); !errors.Is(err, ErrPaymentGateway) {
		t.Fatalf("err = %v, want ErrPaymentGateway", err)
	}
	orders, _ := env.store.ListOrdersByUser(user.ID)
	if len(orders) != 0 {
		t.Fatalf("orders recorded after gateway failure: %d", len(orders))
	}
}

func TestPurchaseUnlocksDownload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, "Go Basics", 499, 5)
	user := env.addUser(t, "reader@example.com")

	if _, err := env.app.Download(ctx, user, book.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("before purchase err = %v, want ErrForbidden", err)
	}
	c := checkout(t, env, user, book.ID)
	order, err := env.app.VerifyPayment(ctx, user, signed(c, "pay_1"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if order.Status != domain.OrderCompleted || order.ProviderPaymentID != "pay_1" {
		t.Fatalf("order = %+v", order)
	}
	fresh := env.reload(t, user.ID)
	if !fresh.HasPurchased(book.ID) {
		t.Fatalf("purchase not recorded: %v", fresh.PurchasedBooks)
	}
	if _, err := env.app.Download(ctx, fresh, book.ID); err != nil {
		t.Fatalf("download after purchase: %v", err)
	}
	if env.events.count() != 1 {
		t.Fatalf("events = %d, want 1", env.events.count())
	}
}

func TestVerifyPaymentIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, "Go Basics", 499, 3)
	user := env.addUser(t, "reader@example.com")
	c := checkout(t, env, user, book.ID)

	for i := 0; i < 2; i++ {
		if _, err := env.app.VerifyPayment(ctx, user, signed(c, "pay_1")); err != nil {
			t.Fatalf("verify #%d: %v", i+1, err)
		}
	}
	fresh := env.reload(t, user.ID)
	if len(fresh.PurchasedBooks) != 1 {
		t.Fatalf("purchased = %v, want one entry", fresh.PurchasedBooks)
	}
	if env.events.count() != 1 {
		t.Fatalf("events = %d, want 1", env.events.count())
	}
}

func TestVerifyPaymentConcurrent(t *testing.T) {
	env := newTestEnv(t)
	book := env.addBook(t, "Go Basics", 499, 3)
	user := env.addUser(t, "reader@example.com")
	c := checkout(t, env, user, book.ID)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.app.VerifyPayment(context.Background(), user, signed(c, "pay_1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
	}
	if got := env.reload(t, user.ID).PurchasedBooks; len(got) != 1 {
		t.Fatalf("purchased = %v, want one entry", got)
	}
	if env.events.count() != 1 {
		t.Fatalf("events = %d, want 1", env.events.count())
	}
}

func TestVerifyPaymentInvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, "Go Basics", 499, 3)
	user := env.addUser(t, "reader@example.com")
	c := checkout(t, env, user, book.ID)

	in := signed(c, "pay_1")
	in.Signature = payment.Sign("wrong-secret", c.ID, "pay_1")
	if _, err := env.app.VerifyPayment(ctx, user, in); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	order, _, _ := env.store.GetOrder(c.OrderID)
	if order.Status != domain.OrderPending {
		t.Fatalf("status = %s, want pending", order.Status)
	}
	if env.reload(t, user.ID).HasPurchased(book.ID) {
		t.Fatalf("purchase recorded with invalid signature")
	}
}

func TestVerifyPaymentLooksUpByProviderID(t *testing.T) {
	env := newTestEnv(t)
	book := env.addBook(t, "Go Basics", 499, 3)
	user := env.addUser(t, "reader@example.com")
	c := checkout(t, env, user, book.ID)

	in := signed(c, "pay_1")
	in.OrderID = ""
	order, err := env.app.VerifyPayment(context.Background(), user, in)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if order.ID != c.OrderID {
		t.Fatalf("order id = %s, want %s", order.ID, c.OrderID)
	}
}

func TestVerifyPaymentRejectsForeignOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, "Go Basics", 499, 3)
	owner := env.addUser(t, "owner@example.com")
	other := env.addUser(t, "other@example.com")
	c := checkout(t, env, owner, book.ID)

	if _, err := env.app.VerifyPayment(ctx, other, signed(c, "pay_1")); !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("err = %v, want ErrOrderMismatch", err)
	}
	if env.reload(t, other.ID).HasPurchased(book.ID) || env.reload(t, owner.ID).HasPurchased(book.ID) {
		t.Fatalf("purchase recorded for mismatched order")
	}
}

func TestVerifyPaymentRejectsSwappedProviderOrder(t *testing.T) {
	env := newTestEnv(t)
	cheap := env.addBook(t, "Cheap", 1, 3)
	pricey := env.addBook(t, "Pricey", 999, 3)
	user := env.addUser(t, "reader@example.com")
	paid := checkout(t, env, user, cheap.ID)
	unpaid := checkout(t, env, user, pricey.ID)

	in := signed(paid, "pay_1")
	in.OrderID = unpaid.OrderID
	if _, err := env.app.VerifyPayment(context.Background(), user, in); !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("err = %v, want ErrOrderMismatch", err)
	}
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "reader@example.com")
	in := VerifyInput{
		ProviderOrderID:   "order_nope",
		ProviderPaymentID: "pay_1",
		Signature:         payment.Sign(testGatewaySecret, "order_nope", "pay_1"),
	}
	if _, err := env.app.VerifyPayment(context.Background(), user, in); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestVerifyPaymentSurvivesPublishFailure(t *testing.T) {
	env := newTestEnv(t)
	book := env.addBook(t, "Go Basics", 499, 3)
	user := env.addUser(t, "reader@example.com")
	c := checkout(t, env, user, book.ID)
	env.events.err = errors.New("broker down")

	if _, err := env.app.VerifyPayment(context.Background(), user, signed(c, "pay_1")); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !env.reload(t, user.ID).HasPurchased(book.ID) {
		t.Fatalf("purchase missing after publish failure")
	}
}

func TestMyOrdersEmbedsBooks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	kept := env.addBook(t, "Kept", 100, 3)
	removed := env.addBook(t, "Removed", 200, 3)
	user := env.addUser(t, "reader@example.com")
	checkout(t, env, user, kept.ID)
	checkout(t, env, user, removed.ID)
	if err := env.app.DeleteBook(ctx, removed.ID); err != nil {
		t.Fatalf("delete book: %v", err)
	}

	views, err := env.app.MyOrders(user)
	if err != nil {
		t.Fatalf("my orders: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("orders = %d, want 2", len(views))
	}
	for _, v := range views {
		switch v.BookID {
		case kept.ID:
			if v.Book == nil || v.Book.Title != "Kept" {
				t.Fatalf("kept order book = %+v", v.Book)
			}
		case removed.ID:
			if v.Book != nil {
				t.Fatalf("deleted book still embedded: %+v", v.Book)
			}
		default:
			t.Fatalf("unexpected order %+v", v)
		}
	}
}

// failedOrders reports every order as failed and refuses to complete it.
type failedOrders struct{ store.Store }

func (s failedOrders) GetOrder(id string) (domain.Order, bool, error) {
	o, ok, err := s.Store.GetOrder(id)
	o.Status = domain.OrderFailed
	return o, ok, err
}

func (failedOrders) CompleteOrder(string, string, time.Time) (bool, error) {
	return false, nil
}

func TestVerifyPaymentFailedOrderGrantsNothing(t *testing.T) {
	env := newTestEnv(t)
	book := env.addBook(t, "Go Basics", 499, 3)
	user := env.addUser(t, "reader@example.com")
	c := checkout(t, env, user, book.ID)
	env.app.store = failedOrders{env.store}

	if _, err := env.app.VerifyPayment(context.Background(), user, signed(c, "pay_1")); !errors.Is(err, ErrOrderNotPayable) {
		t.Fatalf("err = %v, want ErrOrderNotPayable", err)
	}
	if env.reload(t, user.ID).HasPurchased(book.ID) {
		t.Fatalf("purchase recorded for a failed order")
	}
	if env.events.count() != 0 {
		t.Fatalf("events = %d, want 0", env.events.count())
	}
}
