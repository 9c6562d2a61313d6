// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore implements Store on a single key/value table via GORM.
type GormStore struct {
	db *gorm.DB
}

// KVModel is the backing row. Values are opaque JSON blobs; ExpiresAt is
// checked on read since postgres has no native TTL.
type KVModel struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     []byte `gorm:"type:jsonb"`
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

func (KVModel) TableName() string { return "kv_records" }

func NewGormStore(host string, port int, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&KVModel{}); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var row KVModel
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if row.ExpiresAt != nil && row.ExpiresAt.Before(time.Now()) {
		s.db.WithContext(ctx).Delete(&KVModel{}, "key = ?", key)
		return nil, ErrNotFound
	}
	return row.Value, nil
}

func (s *GormStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	row := KVModel{Key: key, Value: value, UpdatedAt: time.Now()}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		row.ExpiresAt = &expires
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&KVModel{}, "key = ?", key).Error
}

func (s *GormStore) ListByPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	var rows []KVModel
	err := s.db.WithContext(ctx).Where("key LIKE ?", prefix+"%").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := make(map[string][]byte, len(rows))
	for _, row := range rows {
		if row.ExpiresAt != nil && row.ExpiresAt.Before(now) {
			continue
		}
		result[row.Key] = row.Value
	}
	return result, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
