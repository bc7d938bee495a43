package domain

import (
	"slices"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
)

// DefaultPreviewPages is the number of content pages recorded for a book
// when the admin does not supply one.
const DefaultPreviewPages = 2

type Book struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        int64     `json:"price"`
	CoverKey     string    `json:"-"`
	PDFKey       string    `json:"-"`
	PreviewPages int       `json:"previewPages"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           UserRole  `json:"role"`
	PurchasedBooks []string  `json:"purchasedBooks"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HasPurchased reports whether bookID is in the user's purchased set.
func (u User) HasPurchased(bookID string) bool {
	return slices.Contains(u.PurchasedBooks, bookID)
}

type Order struct {
	ID                string      `json:"id"`
	UserID            string      `json:"userId"`
	BookID            string      `json:"bookId"`
	ProviderOrderID   string      `json:"providerOrderId"`
	ProviderPaymentID string      `json:"providerPaymentId,omitempty"`
	Amount            int64       `json:"amount"`
	Currency          string      `json:"currency"`
	Status            OrderStatus `json:"status"`
	ProviderPayload   []byte      `json:"-"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}
