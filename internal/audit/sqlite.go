package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// auditRow is the database shape of an Entry. Seq preserves insertion order.
type auditRow struct {
	Seq           uint      `gorm:"primaryKey;autoIncrement"`
	EntryID       string    `gorm:"uniqueIndex;size:36"`
	Timestamp     time.Time `gorm:"index"`
	UserID        string    `gorm:"index;size:255"`
	Query         string
	ToolName      string `gorm:"size:255"`
	Arguments     string
	Status        string `gorm:"size:16"`
	ResultPreview string
	Error         string
}

func (auditRow) TableName() string {
	return "audit_entries"
}

// SQLiteSink stores entries in a SQLite table.
type SQLiteSink struct {
	db *gorm.DB
}

// OpenSQLite opens the database at dsn and prepares the table.
func OpenSQLite(dsn string) (*SQLiteSink, error) {
	if dsn == "" {
		return nil, errors.New("sqlite audit sink requires a dsn")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One writer keeps appends totally ordered and avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	return NewSQLiteSink(db)
}

// NewSQLiteSink uses an existing handle and migrates the table.
func NewSQLiteSink(db *gorm.DB) (*SQLiteSink, error) {
	if db == nil {
		return nil, errors.New("sqlite audit sink requires database handle")
	}
	if err := db.AutoMigrate(&auditRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit table: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Append(ctx context.Context, e Entry) error {
	args, err := json.Marshal(e.Arguments)
	if err != nil {
		return fmt.Errorf("failed to encode audit arguments: %w", err)
	}
	row := &auditRow{
		EntryID:       e.ID,
		Timestamp:     e.Timestamp,
		UserID:        e.UserID,
		Query:         e.Query,
		ToolName:      e.ToolName,
		Arguments:     string(args),
		Status:        string(e.Status),
		ResultPreview: e.ResultPreview,
		Error:         e.Error,
	}
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(s.db.WithContext(ctx), limit)
}

func (s *SQLiteSink) ForUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	return s.query(s.db.WithContext(ctx).Where("user_id = ?", userID), limit)
}

func (s *SQLiteSink) query(tx *gorm.DB, limit int) ([]Entry, error) {
	var rows []auditRow
	if err := tx.Order("seq DESC").Limit(normalizeLimit(limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		e := Entry{
			ID:            r.EntryID,
			Timestamp:     r.Timestamp,
			UserID:        r.UserID,
			Query:         r.Query,
			ToolName:      r.ToolName,
			Status:        Status(r.Status),
			ResultPreview: r.ResultPreview,
			Error:         r.Error,
		}
		if r.Arguments != "" {
			if err := json.Unmarshal([]byte(r.Arguments), &e.Arguments); err != nil {
				return nil, fmt.Errorf("failed to decode audit arguments for %s: %w", r.EntryID, err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *SQLiteSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
