package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 钱包用途
const (
	WalletTypeDeposit = "deposit" // 用户充值收款地址
	WalletTypeHot     = "hot"     // 提现热钱包
	WalletTypeCold    = "cold"    // 归集目标冷钱包
	WalletTypeGas     = "gas"     // gas 补给钱包
)

// Wallet 链上钱包表
// 私钥使用 AES-256-GCM 加密落库, 格式 base64(nonce + 密文 + tag)
type Wallet struct {
	ID                  uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Chain               string `gorm:"type:varchar(16);not null;index:idx_chain_type" json:"chain"`
	Address             string `gorm:"type:varchar(64);not null;unique" json:"address"`
	EncryptedPrivateKey string `gorm:"type:text;not null" json:"-"`
	WalletType          string `gorm:"type:varchar(16);not null;index:idx_chain_type" json:"wallet_type"`
	Token               string `gorm:"type:varchar(16)" json:"token"` // 关注的代币, 空表示原生币

	Balance   decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"balance"` // 链上余额缓存
	BalanceAt *time.Time      `json:"balance_at"`                                           // 余额缓存更新时间
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
