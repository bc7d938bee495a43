package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gitaditya567/itskillhub/pkg/domain"
)

const migrateLockID int64 = 51170417

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &OrderModel{}, &PurchaseModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts a new user and fails with ErrEmailTaken on a duplicate email.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// SaveUser registers or updates a user. Purchases are not touched.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	return s.getUser("email = ?", email)
}

// GetUserByID returns a user by ID with the purchased set loaded.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	return s.getUser("id = ?", id)
}

func (s *GormStore) getUser(cond string, arg any) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where(cond, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	purchased, err := s.purchasedBooks(model.ID)
	if err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model, purchased), true, nil
}

func (s *GormStore) purchasedBooks(userID string) ([]string, error) {
	var ids []string
	if err := s.db.Model(&PurchaseModel{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("book_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	return ids, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	var purchases []PurchaseModel
	if err := s.db.Order("created_at ASC").Find(&purchases).Error; err != nil {
		return nil, err
	}
	byUser := make(map[string][]string)
	for _, p := range purchases {
		byUser[p.UserID] = append(byUser[p.UserID], p.BookID)
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m, byUser[m.ID]))
	}
	return res, nil
}

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "price", "cover_key", "pdf_key", "preview_pages", "updated_at"}),
	}).Create(&model).Error
}

// ListBooks returns all books, newest first.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// DeleteBook removes the book row. Orders and purchases keep the ID so
// order history stays intact.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Delete(&BookModel{}, "id = ?", id).Error
}

// CreateOrder inserts a pending order.
func (s *GormStore) CreateOrder(o domain.Order) error {
	model := orderToModel(o)
	return s.db.Create(&model).Error
}

// GetOrder returns an order by ID.
func (s *GormStore) GetOrder(id string) (domain.Order, bool, error) {
	return s.getOrder("id = ?", id)
}

// GetOrderByProviderID returns the order created for a gateway order id.
func (s *GormStore) GetOrderByProviderID(providerOrderID string) (domain.Order, bool, error) {
	return s.getOrder("provider_order_id = ?", providerOrderID)
}

func (s *GormStore) getOrder(cond string, arg any) (domain.Order, bool, error) {
	var model OrderModel
	if err := s.db.Where(cond, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, err
	}
	return orderFromModel(model), true, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (s *GormStore) ListOrdersByUser(userID string) ([]domain.Order, error) {
	var models []OrderModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Order, 0, len(models))
	for _, m := range models {
		res = append(res, orderFromModel(m))
	}
	return res, nil
}

// CompleteOrder settles a pending order and records the purchase in one transaction.
func (s *GormStore) CompleteOrder(id, paymentID string, settledAt time.Time) (bool, error) {
	completed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model OrderModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		if model.Status != string(domain.OrderPending) {
			return nil
		}
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND status = ?", id, string(domain.OrderPending)).
			Updates(map[string]any{
				"status":              string(domain.OrderCompleted),
				"provider_payment_id": paymentID,
				"updated_at":          settledAt.UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := insertPurchase(tx, model.UserID, model.BookID, settledAt); err != nil {
			return err
		}
		completed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("complete order: %w", err)
	}
	return completed, nil
}

// AddPurchasedBook adds bookID to the user's purchased set; repeats are no-ops.
func (s *GormStore) AddPurchasedBook(userID, bookID string) error {
	return insertPurchase(s.db, userID, bookID, time.Now())
}

func insertPurchase(db *gorm.DB, userID, bookID string, at time.Time) error {
	row := PurchaseModel{UserID: userID, BookID: bookID, CreatedAt: at.UTC()}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel, purchased []string) domain.User {
	if purchased == nil {
		purchased = []string{}
	}
	return domain.User{
		ID:             m.ID,
		Name:           m.Name,
		Email:          m.Email,
		PasswordHash:   m.PasswordHash,
		Role:           domain.UserRole(m.Role),
		PurchasedBooks: purchased,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:           b.ID,
		Title:        b.Title,
		Description:  b.Description,
		Price:        b.Price,
		CoverKey:     b.CoverKey,
		PDFKey:       b.PDFKey,
		PreviewPages: b.PreviewPages,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		Price:        m.Price,
		CoverKey:     m.CoverKey,
		PDFKey:       m.PDFKey,
		PreviewPages: m.PreviewPages,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func orderToModel(o domain.Order) OrderModel {
	var payload datatypes.JSON
	if len(o.ProviderPayload) > 0 {
		payload = datatypes.JSON(o.ProviderPayload)
	}
	return OrderModel{
		ID:                o.ID,
		UserID:            o.UserID,
		BookID:            o.BookID,
		ProviderOrderID:   o.ProviderOrderID,
		ProviderPaymentID: o.ProviderPaymentID,
		Amount:            o.Amount,
		Currency:          o.Currency,
		Status:            string(o.Status),
		ProviderPayload:   payload,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func orderFromModel(m OrderModel) domain.Order {
	return domain.Order{
		ID:                m.ID,
		UserID:            m.UserID,
		BookID:            m.BookID,
		ProviderOrderID:   m.ProviderOrderID,
		ProviderPaymentID: m.ProviderPaymentID,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Status:            domain.OrderStatus(m.Status),
		ProviderPayload:   []byte(m.ProviderPayload),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
