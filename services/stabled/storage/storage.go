package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrPathRequired is returned when the journal DSN is missing.
	ErrPathRequired = errors.New("stabled storage path must be configured")
	// ErrNotFound is returned when a journal record does not exist.
	ErrNotFound = errors.New("record not found")
)

// CommitRecord journals one committed batch.
type CommitRecord struct {
	ID           uint   `gorm:"primaryKey"`
	CommitID     string `gorm:"size:64;uniqueIndex"`
	Signer       string `gorm:"size:64;index"`
	Instructions string `gorm:"type:text"`
	Events       string `gorm:"type:text"`
	Result       string `gorm:"type:text"`
	CreatedAt    time.Time
}

// QuoteRecord audits a quote preview served to a client.
type QuoteRecord struct {
	ID          string `gorm:"size:36;primaryKey"`
	Operation   string `gorm:"size:16;index"`
	Vault       string `gorm:"size:64;index"`
	Benefactor  string `gorm:"size:64;index"`
	AmountIn    uint64
	AmountOut   uint64
	FeeAmount   uint64
	OraclePrice uint64
	Error       string `gorm:"size:256"`
	CreatedAt   time.Time
}

// Storage wraps the stabled journal.
type Storage struct {
	db *gorm.DB
}

// Open connects to postgres for postgres:// DSNs and to SQLite otherwise, then migrates
// the journal schema.
func Open(dsn string) (*Storage, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	dialector := sqlite.Open(trimmed)
	if isPostgres(trimmed) {
		dialector = postgres.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&CommitRecord{}, &QuoteRecord{}); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordCommit appends a batch to the journal.
func (s *Storage) RecordCommit(ctx context.Context, rec *CommitRecord) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	if rec == nil || strings.TrimSpace(rec.CommitID) == "" {
		return fmt.Errorf("commit id required")
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert commit: %w", err)
	}
	return nil
}

// GetCommit loads a journal entry by commit id.
func (s *Storage) GetCommit(ctx context.Context, commitID string) (CommitRecord, error) {
	var rec CommitRecord
	err := s.db.WithContext(ctx).Where("commit_id = ?", strings.TrimSpace(commitID)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CommitRecord{}, ErrNotFound
	}
	if err != nil {
		return CommitRecord{}, fmt.Errorf("load commit: %w", err)
	}
	return rec, nil
}

// ListCommits returns the most recent commits, newest first.
func (s *Storage) ListCommits(ctx context.Context, limit int) ([]CommitRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var recs []CommitRecord
	if err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	return recs, nil
}

// RecordQuote stores a quote audit row.
func (s *Storage) RecordQuote(ctx context.Context, rec *QuoteRecord) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("quote id required")
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

// GetQuote loads a quote audit row by id.
func (s *Storage) GetQuote(ctx context.Context, id string) (QuoteRecord, error) {
	var rec QuoteRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return QuoteRecord{}, ErrNotFound
	}
	if err != nil {
		return QuoteRecord{}, fmt.Errorf("load quote: %w", err)
	}
	return rec, nil
}
