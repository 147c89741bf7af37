package chain

import (
	"context"

	"akx-core/pkg/errno"

	"github.com/shopspring/decimal"
)

// 链代码
const (
	CodeTron     = "trx"
	CodeEthereum = "eth"
	CodeSolana   = "sol"
)

// TransferEvent 扫块得到的一笔入账转账 (原生币或代币)
type TransferEvent struct {
	TxHash string
	From   string
	To     string
	Token  string // 代币符号, 空表示原生币
	Amount decimal.Decimal
	Height uint64
}

// Keypair 新生成的链上密钥对; 私钥仅在内存中短暂存在, 落库前必须加密
type Keypair struct {
	Address    string
	PrivateKey string // hex 编码 (Solana 为 32 字节种子)
}

// TokenConfig 受支持代币的合约信息
type TokenConfig struct {
	Symbol   string
	Contract string
	Decimals int32
}

// Scanner 是单条链的只读扫描 + 出款能力
// 所有阻塞调用都带 ctx; 金额一律用 decimal 表示人类可读单位
type Scanner interface {
	// Code 返回链代码 (trx / eth / sol)
	Code() string

	// CurrentHeight 当前链头高度
	CurrentHeight(ctx context.Context) (uint64, error)

	// ScanRange 扫描 [from, to] 区间, 只返回收款方在 watch 集合内的转账
	ScanRange(ctx context.Context, from, to uint64, watch map[string]bool) ([]TransferEvent, error)

	// Confirmations 某笔交易当前确认数; 未上链返回 0
	Confirmations(ctx context.Context, txHash string) (uint64, error)

	ValidateAddress(address string) bool

	NativeBalance(ctx context.Context, address string) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, address string, token string) (decimal.Decimal, error)

	// SendNative / SendToken 签名并广播, 返回交易哈希
	SendNative(ctx context.Context, privateKey string, to string, amount decimal.Decimal) (string, error)
	SendToken(ctx context.Context, privateKey string, to string, token string, amount decimal.Decimal) (string, error)

	GenerateWallet() (*Keypair, error)
}

// Registry 按链代码持有 Scanner, 替代全局单例
type Registry struct {
	scanners map[string]Scanner
}

func NewRegistry() *Registry {
	return &Registry{scanners: make(map[string]Scanner)}
}

func (r *Registry) Register(s Scanner) {
	r.scanners[s.Code()] = s
}

func (r *Registry) Get(code string) (Scanner, error) {
	s, ok := r.scanners[code]
	if !ok {
		return nil, errno.ErrUnsupportedChain
	}
	return s, nil
}

func (r *Registry) All() []Scanner {
	out := make([]Scanner, 0, len(r.scanners))
	for _, s := range r.scanners {
		out = append(out, s)
	}
	return out
}
