package app

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gitaditya567/itskillhub/internal/payment"
	"github.com/gitaditya567/itskillhub/pkg/events"
	"github.com/gitaditya567/itskillhub/pkg/storage"
	"github.com/gitaditya567/itskillhub/pkg/store"
)

const (
	defaultCurrency    = "INR"
	defaultProductName = "IT SkillHub"
)

// Config holds the collaborators and settings of the storefront core.
type Config struct {
	Store     store.Store
	Sessions  store.SessionStore
	Artifacts storage.ArtifactStore
	Payments  payment.Gateway
	// Events is optional; nil drops events.
	Events events.Publisher

	Currency    string
	ProductName string
	// Now is overridable for tests.
	Now func() time.Time
}

// App is the storefront core: accounts, catalog, access and orders.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	artifacts storage.ArtifactStore
	payments  payment.Gateway
	events    events.Publisher

	currency    string
	productName string
	now         func() time.Time

	verifyGroup singleflight.Group
}

// New validates cfg and builds the App.
func New(cfg Config) (*App, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("app: store is required")
	case cfg.Sessions == nil:
		return nil, errors.New("app: session store is required")
	case cfg.Artifacts == nil:
		return nil, errors.New("app: artifact store is required")
	case cfg.Payments == nil:
		return nil, errors.New("app: payment gateway is required")
	}
	a := &App{
		store:       cfg.Store,
		sessions:    cfg.Sessions,
		artifacts:   cfg.Artifacts,
		payments:    cfg.Payments,
		events:      cfg.Events,
		currency:    strings.TrimSpace(cfg.Currency),
		productName: strings.TrimSpace(cfg.ProductName),
		now:         cfg.Now,
	}
	if a.events == nil {
		a.events = events.Nop{}
	}
	if a.currency == "" {
		a.currency = defaultCurrency
	}
	if a.productName == "" {
		a.productName = defaultProductName
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Sessions exposes the session store, e.g. for publishing JWKS.
func (a *App) Sessions() store.SessionStore {
	return a.sessions
}
