package model

import (
	"time"
)

// ChainCursor 扫块游标表
// 每条链一行; 只有该链的扫描协程会写, 事务提交后才推进
type ChainCursor struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Chain             string    `gorm:"type:varchar(16);not null;unique" json:"chain"`
	LastScannedHeight uint64    `gorm:"not null;default:0" json:"last_scanned_height"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (ChainCursor) TableName() string {
	return "chain_cursors"
}
