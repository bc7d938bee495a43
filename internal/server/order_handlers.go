package server

import (
	"net/http"

	"github.com/gitaditya567/itskillhub/internal/app"
	"github.com/gitaditya567/itskillhub/pkg/domain"
)

type createOrderRequest struct {
	BookID string `json:"bookId" validate:"required"`
}

type verifyPaymentRequest struct {
	ProviderOrderID   string `json:"razorpay_order_id" validate:"required"`
	ProviderPaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature         string `json:"razorpay_signature" validate:"required"`
	OrderID           string `json:"orderId"`
}

type verifyPaymentResponse struct {
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createOrderRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	checkout, err := s.app.CreateOrder(r.Context(), user, req.BookID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req verifyPaymentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	order, err := s.app.VerifyPayment(r.Context(), user, app.VerifyInput{
		ProviderOrderID:   req.ProviderOrderID,
		ProviderPaymentID: req.ProviderPaymentID,
		Signature:         req.Signature,
		OrderID:           req.OrderID,
	})
	if err != nil {
		s.audit(r, "storefront.payment.verify", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "storefront.payment.verify", "success", "user_id", user.ID, "order_id", order.ID)
	writeJSON(w, http.StatusOK, verifyPaymentResponse{Message: "Payment successful", OrderID: order.ID})
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	orders, err := s.app.MyOrders(user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
