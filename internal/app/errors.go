package app

import "errors"

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrArtifactNotFound = errors.New("file not found on server")
	// ErrForbidden means the caller is known but lacks a purchase of the book.
	ErrForbidden = errors.New("you have not purchased this book")
	// ErrMalformedArtifact means a stored PDF could not be parsed or rendered.
	ErrMalformedArtifact = errors.New("failed to render document")

	ErrUnauthenticated    = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAdminRequired      = errors.New("admin access required")

	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidUpload = errors.New("invalid upload")

	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrOrderMismatch    = errors.New("order does not match payment")
	ErrOrderNotPayable  = errors.New("order can no longer be paid")
	ErrPaymentGateway   = errors.New("payment initiation failed")
)
