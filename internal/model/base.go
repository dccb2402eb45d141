package model

import "time"

// Timestamps 持久化记录的公共时间字段
type Timestamps struct {
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// SessionEntry 会话键值表的一行，只在 postgres 后端使用
type SessionEntry struct {
	Timestamps
	Key   string `gorm:"primaryKey;type:varchar(64)" json:"key"`
	Value string `gorm:"type:text;not null" json:"value"`
}

// TableName 指定表名
func (SessionEntry) TableName() string {
	return "session_entries"
}
