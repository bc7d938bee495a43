package store

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/gitaditya567/itskillhub/pkg/domain"
)

// MemoryStore keeps everything in-process. Used by tests and local runs
// without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User // key: user ID
	email     map[string]string      // email -> user ID
	books     map[string]domain.Book
	orders    map[string]domain.Order
	providers map[string]string // provider order id -> order ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		email:     make(map[string]string),
		books:     make(map[string]domain.Book),
		orders:    make(map[string]domain.Order),
		providers: make(map[string]string),
	}
}

// CreateUser inserts a new user.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.email[u.Email]; taken {
		return ErrEmailTaken
	}
	if _, exists := m.users[u.ID]; exists {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	u.PurchasedBooks = slices.Clone(u.PurchasedBooks)
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// SaveUser inserts or updates profile fields, keeping the purchased set.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok {
		if prev.Email != u.Email {
			delete(m.email, prev.Email)
		}
		u.PurchasedBooks = prev.PurchasedBooks
	} else {
		u.PurchasedBooks = slices.Clone(u.PurchasedBooks)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.copyUser(id)
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyUser(id)
}

func (m *MemoryStore) copyUser(id string) (domain.User, bool, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, false, nil
	}
	u.PurchasedBooks = slices.Clone(u.PurchasedBooks)
	if u.PurchasedBooks == nil {
		u.PurchasedBooks = []string{}
	}
	return u, true, nil
}

// ListUsers returns users ordered by creation time.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for id := range m.users {
		u, _, _ := m.copyUser(id)
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// SaveBook stores or replaces a book record.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[b.ID] = b
	return nil
}

// ListBooks returns books newest first.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// DeleteBook removes a book.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	return nil
}

// CreateOrder records a new order.
func (m *MemoryStore) CreateOrder(o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.providers[o.ProviderOrderID]; dup {
		return fmt.Errorf("provider order %s already recorded", o.ProviderOrderID)
	}
	m.orders[o.ID] = o
	m.providers[o.ProviderOrderID] = o.ID
	return nil
}

// GetOrder returns an order by ID.
func (m *MemoryStore) GetOrder(id string) (domain.Order, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	return o, ok, nil
}

// GetOrderByProviderID returns the order created for a gateway order id.
func (m *MemoryStore) GetOrderByProviderID(providerOrderID string) (domain.Order, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.providers[providerOrderID]
	if !ok {
		return domain.Order{}, false, nil
	}
	return m.orders[id], true, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (m *MemoryStore) ListOrdersByUser(userID string) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// CompleteOrder settles a pending order and records the purchase.
func (m *MemoryStore) CompleteOrder(id, paymentID string, settledAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, fmt.Errorf("complete order: order %s not found", id)
	}
	if o.Status != domain.OrderPending {
		return false, nil
	}
	o.Status = domain.OrderCompleted
	o.ProviderPaymentID = paymentID
	o.UpdatedAt = settledAt.UTC()
	m.orders[id] = o
	m.addPurchase(o.UserID, o.BookID)
	return true, nil
}

// AddPurchasedBook adds bookID to the user's purchased set; repeats are no-ops.
func (m *MemoryStore) AddPurchasedBook(userID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("user %s not found", userID)
	}
	m.addPurchase(userID, bookID)
	return nil
}

func (m *MemoryStore) addPurchase(userID, bookID string) {
	u, ok := m.users[userID]
	if !ok || slices.Contains(u.PurchasedBooks, bookID) {
		return
	}
	u.PurchasedBooks = append(slices.Clone(u.PurchasedBooks), bookID)
	m.users[userID] = u
}
