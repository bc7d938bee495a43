package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gitaditya567/itskillhub/internal/app"
	"github.com/gitaditya567/itskillhub/internal/util"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

type appError struct {
	err    error
	status int
	code   string
	// detail echoes the wrapped error text; only for caller-caused errors.
	detail bool
}

var appErrors = []appError{
	{err: app.ErrBookNotFound, status: http.StatusNotFound, code: "BOOK_NOT_FOUND"},
	{err: app.ErrArtifactNotFound, status: http.StatusNotFound, code: "BOOK_FILE_NOT_FOUND"},
	{err: app.ErrForbidden, status: http.StatusForbidden, code: "BOOK_FORBIDDEN"},
	{err: app.ErrMalformedArtifact, status: http.StatusInternalServerError, code: "BOOK_RENDER_FAILED"},
	{err: app.ErrUnauthenticated, status: http.StatusUnauthorized, code: "AUTH_INVALID_TOKEN"},
	{err: app.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "AUTH_INVALID_CREDENTIALS"},
	{err: app.ErrEmailTaken, status: http.StatusConflict, code: "AUTH_EMAIL_TAKEN"},
	{err: app.ErrAdminRequired, status: http.StatusForbidden, code: "AUTH_ADMIN_REQUIRED"},
	{err: app.ErrInvalidInput, status: http.StatusBadRequest, code: "REQUEST_INVALID", detail: true},
	{err: app.ErrInvalidUpload, status: http.StatusBadRequest, code: "BOOK_INVALID_UPLOAD", detail: true},
	{err: app.ErrOrderNotFound, status: http.StatusNotFound, code: "ORDER_NOT_FOUND"},
	{err: app.ErrInvalidSignature, status: http.StatusBadRequest, code: "ORDER_INVALID_SIGNATURE"},
	{err: app.ErrOrderMismatch, status: http.StatusForbidden, code: "ORDER_MISMATCH"},
	{err: app.ErrOrderNotPayable, status: http.StatusConflict, code: "ORDER_NOT_PAYABLE"},
	{err: app.ErrPaymentGateway, status: http.StatusBadGateway, code: "PAYMENT_GATEWAY_ERROR"},
}

// writeAppError maps core errors to status codes. Anything unrecognised is
// logged and reported as a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range appErrors {
		if !errors.Is(err, e.err) {
			continue
		}
		msg := e.err.Error()
		if e.detail {
			msg = detailMessage(err, e.err)
		}
		writeError(w, e.status, e.code, msg)
		return
	}
	util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "SYSTEM_INTERNAL_ERROR", "internal error")
}

// detailMessage strips the sentinel prefix from "sentinel: detail".
func detailMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}
