package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"coinbot/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the flat key-value persistence layer: one row per account for
// the cash balance, one row per account for the full holdings mapping, one
// row per symbol for its quote snapshot, plus a settings table.
type Storage struct {
	db *gorm.DB
}

// balanceRow stores an account's cash balance. The balance is kept as the
// decimal's string form so no precision is lost in the database.
type balanceRow struct {
	UserID    string `gorm:"primaryKey"`
	Balance   string
	UpdatedAt time.Time
}

// holdingsRow stores the whole holdings mapping of an account as one JSON
// blob. Writes replace the blob wholesale; there are no partial updates.
type holdingsRow struct {
	UserID    string `gorm:"primaryKey"`
	Data      []byte
	UpdatedAt time.Time
}

// quoteRow stores a quote snapshot as a JSON blob keyed by symbol.
type quoteRow struct {
	Symbol    string `gorm:"primaryKey"`
	Data      []byte
	UpdatedAt time.Time
}

// NewStorage creates a new SQLite storage instance at the given path
func NewStorage(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&balanceRow{}, &holdingsRow{}, &quoteRow{}, &domain.Setting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// ======================================================================================
// Ledger Operations
// ======================================================================================

// GetBalance returns the stored cash balance, or zero for unknown accounts.
func (s *Storage) GetBalance(userID string) (decimal.Decimal, error) {
	var row balanceRow
	err := s.db.First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	bal, err := decimal.NewFromString(row.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance for %s: %w", userID, err)
	}
	return bal, nil
}

// PutBalance overwrites the stored balance.
func (s *Storage) PutBalance(userID string, balance decimal.Decimal) error {
	row := balanceRow{
		UserID:    userID,
		Balance:   balance.String(),
		UpdatedAt: time.Now(),
	}
	return s.db.Save(&row).Error
}

// GetHoldings returns the holdings mapping, or an empty map for unknown accounts.
func (s *Storage) GetHoldings(userID string) (map[string]*domain.Holding, error) {
	var row holdingsRow
	err := s.db.First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return make(map[string]*domain.Holding), nil
	}
	if err != nil {
		return nil, err
	}

	holdings := make(map[string]*domain.Holding)
	if err := json.Unmarshal(row.Data, &holdings); err != nil {
		return nil, fmt.Errorf("corrupt holdings for %s: %w", userID, err)
	}
	return holdings, nil
}

// PutHoldings overwrites the stored holdings mapping wholesale.
func (s *Storage) PutHoldings(userID string, holdings map[string]*domain.Holding) error {
	data, err := json.Marshal(holdings)
	if err != nil {
		return err
	}
	row := holdingsRow{
		UserID:    userID,
		Data:      data,
		UpdatedAt: time.Now(),
	}
	return s.db.Save(&row).Error
}

// ======================================================================================
// Quote Operations
// ======================================================================================

// UpsertQuote creates or updates a quote snapshot
func (s *Storage) UpsertQuote(q *domain.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	row := quoteRow{
		Symbol:    q.Symbol,
		Data:      data,
		UpdatedAt: time.Now(),
	}
	return s.db.Save(&row).Error
}

// GetQuote retrieves a quote snapshot by symbol
func (s *Storage) GetQuote(symbol string) (*domain.Quote, error) {
	var row quoteRow
	err := s.db.First(&row, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}

	var q domain.Quote
	if err := json.Unmarshal(row.Data, &q); err != nil {
		return nil, fmt.Errorf("corrupt quote for %s: %w", symbol, err)
	}
	return &q, nil
}

// AllQuotes retrieves every stored quote snapshot
func (s *Storage) AllQuotes() ([]*domain.Quote, error) {
	var rows []quoteRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	quotes := make([]*domain.Quote, 0, len(rows))
	for _, row := range rows {
		var q domain.Quote
		if err := json.Unmarshal(row.Data, &q); err != nil {
			return nil, fmt.Errorf("corrupt quote for %s: %w", row.Symbol, err)
		}
		quotes = append(quotes, &q)
	}
	return quotes, nil
}

// ======================================================================================
// Settings Operations
// ======================================================================================

// SaveSetting saves a persisted preference
func (s *Storage) SaveSetting(key, value string) error {
	setting := domain.Setting{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&setting).Error
}

// LoadSettings loads all persisted preferences as a map
func (s *Storage) LoadSettings() (map[string]string, error) {
	var settings []domain.Setting
	if err := s.db.Find(&settings).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, st := range settings {
		result[st.Key] = st.Value
	}
	return result, nil
}
