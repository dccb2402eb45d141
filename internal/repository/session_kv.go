package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Investa/internal/model"
	"Investa/internal/session"
)

// SessionKV 基于 PostgreSQL 的会话持久化，一个 key 一行
type SessionKV struct {
	db *gorm.DB
}

var _ session.KV = (*SessionKV)(nil)

func NewSessionKV(db *gorm.DB) *SessionKV {
	return &SessionKV{db: db}
}

func (r *SessionKV) Load(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var rows []model.SessionEntry
	if err := r.db.WithContext(ctx).Where("key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load session entries: %w", err)
	}
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// Save 在一个事务里 upsert 全部条目
func (r *SessionKV) Save(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]model.SessionEntry, 0, len(entries))
	for k, v := range entries {
		rows = append(rows, model.SessionEntry{Key: k, Value: v})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save session entries: %w", err)
	}
	return nil
}

func (r *SessionKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("key IN ?", keys).Delete(&model.SessionEntry{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete session entries: %w", err)
	}
	return nil
}
