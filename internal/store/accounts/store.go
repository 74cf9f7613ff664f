// Package accounts persists the user's linked trading accounts in
// SQLite. This is boundary state, not adapter state: sessions and
// credentials live only inside registry instances.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store wraps the SQLite-backed linked-account table.
type Store struct {
	db *gorm.DB
}

// New opens (creating if needed) the store at path and migrates the
// schema.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("account store: path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("account store: opening %s failed: %w", path, err)
	}
	if err := db.AutoMigrate(&LinkedAccount{}); err != nil {
		return nil, fmt.Errorf("account store: migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Upsert inserts or refreshes a linked account by its account id.
func (s *Store) Upsert(ctx context.Context, acc LinkedAccount) error {
	if strings.TrimSpace(acc.AccountID) == "" {
		return fmt.Errorf("account store: account id cannot be empty")
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			UpdateAll: true,
		}).
		Create(&acc).Error
}

// List returns every linked account ordered by platform then id.
func (s *Store) List(ctx context.Context) ([]LinkedAccount, error) {
	var out []LinkedAccount
	err := s.db.WithContext(ctx).
		Order("platform, account_id").
		Find(&out).Error
	return out, err
}

// Get fetches one linked account; found reports existence.
func (s *Store) Get(ctx context.Context, accountID string) (LinkedAccount, bool, error) {
	var acc LinkedAccount
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return LinkedAccount{}, false, nil
	}
	if err != nil {
		return LinkedAccount{}, false, err
	}
	return acc, true, nil
}

// Delete removes a linked account. Deleting an unknown id is a no-op,
// mirroring adapter disconnect semantics.
func (s *Store) Delete(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&LinkedAccount{}).Error
}
