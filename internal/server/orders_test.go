package server

import (
	"net/http"
	"testing"

	"github.com/gitaditya567/itskillhub/internal/app"
	"github.com/gitaditya567/itskillhub/internal/payment"
)

func TestPurchaseFlow(t *testing.T) {
	ts := newTestServer(t, Config{})
	book := ts.createBook(t, "Go Basics", 5)
	token := ts.register(t, "reader@example.com")

	resp := ts.postJSON(t, "/api/orders", token, map[string]string{"bookId": book.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create order status = %d", resp.StatusCode)
	}
	var checkout app.Checkout
	decode(t, resp, &checkout)
	if checkout.Amount != 49900 || checkout.Currency != "INR" || checkout.Key != "rzp_test_key" {
		t.Fatalf("checkout = %+v", checkout)
	}

	bad := map[string]string{
		"razorpay_order_id":   checkout.ID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  payment.Sign("not-the-secret", checkout.ID, "pay_1"),
		"orderId":             checkout.OrderID,
	}
	expectError(t, ts.postJSON(t, "/api/orders/verify", token, bad), http.StatusBadRequest, "ORDER_INVALID_SIGNATURE")
	expectError(t, ts.do(t, http.MethodGet, "/download/"+book.ID, token, nil, ""), http.StatusForbidden, "BOOK_FORBIDDEN")

	good := map[string]string{
		"razorpay_order_id":   checkout.ID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  payment.Sign(gatewaySecret, checkout.ID, "pay_1"),
		"orderId":             checkout.OrderID,
	}
	for i := 0; i < 2; i++ {
		resp := ts.postJSON(t, "/api/orders/verify", token, good)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("verify #%d status = %d", i+1, resp.StatusCode)
		}
		var out verifyPaymentResponse
		decode(t, resp, &out)
		if out.Message != "Payment successful" || out.OrderID != checkout.OrderID {
			t.Fatalf("verify #%d = %+v", i+1, out)
		}
	}

	me := ts.do(t, http.MethodGet, "/api/users/profile", token, nil, "")
	var profile struct {
		PurchasedBooks []string `json:"purchasedBooks"`
	}
	decode(t, me, &profile)
	if len(profile.PurchasedBooks) != 1 || profile.PurchasedBooks[0] != book.ID {
		t.Fatalf("purchasedBooks = %v", profile.PurchasedBooks)
	}

	dl := ts.do(t, http.MethodGet, "/download/"+book.ID, token, nil, "")
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", dl.StatusCode)
	}
	if got := pdfPages(t, readAll(t, dl)); got != 5 {
		t.Fatalf("pages = %d, want 5", got)
	}

	mine := ts.do(t, http.MethodGet, "/api/orders/myorders", token, nil, "")
	var orders []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Book   *struct {
			Title string `json:"title"`
		} `json:"book"`
	}
	decode(t, mine, &orders)
	if len(orders) != 1 || orders[0].Status != "completed" || orders[0].Book == nil || orders[0].Book.Title != "Go Basics" {
		t.Fatalf("orders = %+v", orders)
	}
}

func TestOrderValidation(t *testing.T) {
	ts := newTestServer(t, Config{})
	token := ts.register(t, "reader@example.com")

	out := expectError(t, ts.postJSON(t, "/api/orders", token, map[string]string{}), http.StatusBadRequest, "REQUEST_INVALID")
	if out.Error != "bookId is required" {
		t.Fatalf("error = %q", out.Error)
	}
	expectError(t, ts.postJSON(t, "/api/orders", token, map[string]string{"bookId": "missing"}), http.StatusNotFound, "BOOK_NOT_FOUND")
	expectError(t, ts.postJSON(t, "/api/orders/verify", token, map[string]string{"razorpay_order_id": "x"}), http.StatusBadRequest, "REQUEST_INVALID")
	expectError(t, ts.postJSON(t, "/api/orders", "", map[string]string{"bookId": "x"}), http.StatusUnauthorized, "AUTH_INVALID_TOKEN")
}
