// Package payment talks to a Razorpay-compatible payment gateway.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"
	"github.com/razorpay/razorpay-go/utils"
)

const DefaultBaseURL = "https://api.razorpay.com"

// Order is the gateway's view of a created order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	// Raw is the gateway response re-encoded as JSON.
	Raw json.RawMessage `json:"-"`
}

// CreateOrderRequest is the body of POST /v1/orders.
type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Gateway creates checkout orders and checks payment signatures.
type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// APIError represents a gateway error response.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("payment gateway: status %d", e.Status)
	}
	return "payment gateway: " + e.Description
}

// Client wraps the Razorpay SDK behind the typed Gateway interface.
type Client struct {
	keyID     string
	keySecret string
	baseURL   string
	rzp       *razorpay.Client
}

// NewClient constructs a gateway client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, keyID, keySecret string) (*Client, error) {
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keySecret) == "" {
		return nil, errors.New("payment key id and secret are required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	rzp := razorpay.NewClient(keyID, keySecret)
	rzp.Order.Request.BaseURL = baseURL
	return &Client{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   baseURL,
		rzp:       rzp,
	}, nil
}

// KeyID is the public key the checkout widget needs.
func (c *Client) KeyID() string { return c.keyID }

// CreateOrder registers an order with the gateway. The SDK takes no context;
// its HTTP client carries a fixed timeout instead.
func (c *Client) CreateOrder(_ context.Context, in CreateOrderRequest) (Order, error) {
	if in.Amount <= 0 {
		return Order{}, errors.New("order amount must be positive")
	}
	resp, err := c.rzp.Order.Create(map[string]interface{}{
		"amount":   in.Amount,
		"currency": in.Currency,
		"receipt":  in.Receipt,
	}, nil)
	if err != nil {
		return Order{}, fmt.Errorf("create gateway order: %w", apiError(err))
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return Order{}, fmt.Errorf("encode gateway order: %w", err)
	}
	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return Order{}, fmt.Errorf("decode gateway order: %w", err)
	}
	if order.ID == "" {
		return Order{}, errors.New("gateway order response missing id")
	}
	order.Raw = raw
	return order, nil
}

func apiError(err error) *APIError {
	var (
		badRequest *rzperrors.BadRequestError
		server     *rzperrors.ServerError
		gateway    *rzperrors.GatewayError
	)
	switch {
	case errors.As(err, &badRequest):
		return &APIError{Status: 400, Code: "BAD_REQUEST_ERROR", Description: badRequest.Message}
	case errors.As(err, &server):
		return &APIError{Status: 500, Code: "SERVER_ERROR", Description: server.Message}
	case errors.As(err, &gateway):
		return &APIError{Status: 502, Code: "GATEWAY_ERROR", Description: gateway.Message}
	default:
		return &APIError{Description: err.Error()}
	}
}

// VerifySignature checks the checkout signature for orderID and paymentID.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(c.keySecret, orderID, paymentID, signature)
}

// VerifySignature reports whether signature was issued with secret for the
// order/payment pair.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, strings.ToLower(strings.TrimSpace(signature)), secret)
}

// Sign computes the signature the gateway hands to checkout for a paid
// order. Only tests and sandboxes need it; the SDK only verifies.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
