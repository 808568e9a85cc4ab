package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVRecord is one row of the Postgres KV driver. The value is raw JSONB;
// interpretation belongs to the vault/audit layers.
type KVRecord struct {
	Key       string         `gorm:"column:k;type:text;primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"column:v;type:jsonb" json:"value"`
	UpdatedAt int64          `gorm:"column:updated_at;autoUpdateTime:milli" json:"updated_at"`
}

func (KVRecord) TableName() string { return "kv_records" }

// Postgres is the durable KV driver over gorm.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&KVRecord{}); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	var row KVRecord
	err := s.db.WithContext(ctx).Where("k = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(row.Value, dst); err != nil {
		// data corrupt: treat as miss by deleting
		_ = s.db.WithContext(ctx).Where("k = ?", key).Delete(&KVRecord{}).Error
		return false, nil
	}
	return true, nil
}

func (s *Postgres) SetJSON(ctx context.Context, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	row := KVRecord{Key: key, Value: datatypes.JSON(b)}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "k"}},
			DoUpdates: clause.AssignmentColumns([]string{"v", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *Postgres) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("k IN ?", keys).Delete(&KVRecord{}).Error
}

func (s *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	// escape LIKE metacharacters so key prefixes stay literal
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	err := s.db.WithContext(ctx).
		Model(&KVRecord{}).
		Where("k LIKE ?", escaped+"%").
		Order("k ASC").
		Pluck("k", &out).Error
	return out, err
}

var _ KV = (*Postgres)(nil)
