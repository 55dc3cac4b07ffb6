package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"timetrack-backend/internal/common"
	"timetrack-backend/internal/domain"
)

// documentRow holds the whole tracker document as a single jsonb row. The
// table only ever contains the row with id documentRowID.
type documentRow struct {
	ID        uint   `gorm:"primaryKey"`
	Payload   string `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (documentRow) TableName() string { return "documents" }

const documentRowID = 1

// PostgresStore implements Store on top of a relational database, keeping
// the document in one row and serializing Update through a row lock.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgresStore connects to the database with the given DSN and ensures
// the documents table exists.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to database: %v", common.ErrUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrating documents table: %v", common.ErrUnavailable, err)
	}

	return &PostgresStore{db: db}, nil
}

func decodeRow(row *documentRow) (*domain.Document, error) {
	doc := domain.NewDocument()
	if err := json.Unmarshal([]byte(row.Payload), doc); err != nil {
		return nil, fmt.Errorf("%w: decoding stored document: %v", common.ErrUnavailable, err)
	}
	if doc.Todos == nil {
		doc.Todos = []*domain.Todo{}
	}
	if doc.Users == nil {
		doc.Users = []*domain.User{}
	}
	if doc.Projects == nil {
		doc.Projects = []*domain.Project{}
	}
	return doc, nil
}

func (s *PostgresStore) Load(ctx context.Context) (*domain.Document, error) {
	var row documentRow
	result := s.db.WithContext(ctx).First(&row, documentRowID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return domain.NewDocument(), nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%w: loading document: %v", common.ErrUnavailable, result.Error)
	}
	return decodeRow(&row)
}

func (s *PostgresStore) Update(ctx context.Context, fn func(*domain.Document) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentRow
		doc := domain.NewDocument()

		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, documentRowID)
		switch {
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			// First write: the row is created below.
		case result.Error != nil:
			return fmt.Errorf("%w: locking document: %v", common.ErrUnavailable, result.Error)
		default:
			var err error
			doc, err = decodeRow(&row)
			if err != nil {
				return err
			}
		}

		if err := fn(doc); err != nil {
			return err
		}

		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("%w: encoding document: %v", common.ErrUnavailable, err)
		}
		row.ID = documentRowID
		row.Payload = string(payload)
		if result := tx.Save(&row); result.Error != nil {
			return fmt.Errorf("%w: saving document: %v", common.ErrUnavailable, result.Error)
		}
		return nil
	})
}

func (s *PostgresStore) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("failed to get underlying DB: %v", err)
		return stats
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"
	dbStats := sqlDB.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	return stats
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
