package store

import (
	"errors"
	"time"

	"github.com/gitaditya567/itskillhub/pkg/domain"
)

// ErrEmailTaken is returned by CreateUser when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Store defines persistence operations for users, books, orders and purchases.
type Store interface {
	// users
	CreateUser(domain.User) error
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)

	// books
	SaveBook(domain.Book) error
	ListBooks() ([]domain.Book, error)
	GetBook(id string) (domain.Book, bool, error)
	DeleteBook(id string) error

	// orders
	CreateOrder(domain.Order) error
	GetOrder(id string) (domain.Order, bool, error)
	GetOrderByProviderID(providerOrderID string) (domain.Order, bool, error)
	ListOrdersByUser(userID string) ([]domain.Order, error)
	// CompleteOrder moves a pending order to completed and records the
	// purchase in one step. It reports false when the order was not pending.
	CompleteOrder(id, paymentID string, settledAt time.Time) (bool, error)

	// purchases
	AddPurchasedBook(userID, bookID string) error
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// JWK represents a JSON Web Key entry used by JWKS endpoints.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JWKSProvider is an optional capability exposed by session stores that can
// publish JSON Web Keys.
type JWKSProvider interface {
	JWKS() []JWK
}
