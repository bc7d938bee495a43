package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type BookModel struct {
	ID           string    `gorm:"primaryKey"`
	Title        string    `gorm:"not null"`
	Description  string    `gorm:"type:text;not null"`
	Price        int64     `gorm:"not null"`
	CoverKey     string    `gorm:"not null"`
	PDFKey       string    `gorm:"column:pdf_key;not null"`
	PreviewPages int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type OrderModel struct {
	ID                string         `gorm:"primaryKey"`
	UserID            string         `gorm:"not null;index"`
	BookID            string         `gorm:"not null;index"`
	ProviderOrderID   string         `gorm:"uniqueIndex;not null"`
	ProviderPaymentID string         `gorm:"not null;default:''"`
	Amount            int64          `gorm:"not null"`
	Currency          string         `gorm:"not null"`
	Status            string         `gorm:"not null"`
	ProviderPayload   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time      `gorm:"not null;index"`
	UpdatedAt         time.Time      `gorm:"not null"`
}

// PurchaseModel is one entry of a user's purchased set.
type PurchaseModel struct {
	UserID    string    `gorm:"primaryKey"`
	BookID    string    `gorm:"primaryKey;index"`
	CreatedAt time.Time `gorm:"not null"`
}
