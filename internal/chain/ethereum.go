package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"akx-core/pkg/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// ERC-20 Transfer(address,address,uint256) 事件签名
var erc20TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// EthereumScanner 通过 ethclient 访问以太坊
type EthereumScanner struct {
	client  *ethclient.Client
	chainID *big.Int
	tokens  map[string]TokenConfig
}

func NewEthereumScanner(cfg config.ChainConfig, tokens []TokenConfig) (*EthereumScanner, error) {
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("获取 ChainID 失败: %w", err)
	}
	m := make(map[string]TokenConfig, len(tokens))
	for _, t := range tokens {
		m[t.Symbol] = t
	}
	return &EthereumScanner{client: client, chainID: chainID, tokens: m}, nil
}

func (s *EthereumScanner) Code() string { return CodeEthereum }

// normalizeEthWatch 以太坊地址大小写不敏感 (EIP-55 只是校验和), 统一按规范地址比较
// 值保留库里存的原始串, 事件原样带回去才能按存储形式匹配订单
func normalizeEthWatch(watch map[string]bool) map[common.Address]string {
	m := make(map[common.Address]string, len(watch))
	for a := range watch {
		m[common.HexToAddress(a)] = a
	}
	return m
}

func (s *EthereumScanner) CurrentHeight(ctx context.Context) (uint64, error) {
	return s.client.BlockNumber(ctx)
}

func (s *EthereumScanner) ScanRange(ctx context.Context, from, to uint64, watch map[string]bool) ([]TransferEvent, error) {
	var events []TransferEvent
	watched := normalizeEthWatch(watch)

	// 原生 ETH 转账: 逐块遍历交易
	for n := from; n <= to; n++ {
		block, err := s.client.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return nil, fmt.Errorf("获取区块 %d 失败: %w", n, err)
		}
		for _, tx := range block.Transactions() {
			if tx.To() == nil || tx.Value().Sign() == 0 {
				continue
			}
			toAddr, ok := watched[*tx.To()]
			if !ok {
				continue
			}
			sender, err := types.Sender(types.LatestSignerForChainID(s.chainID), tx)
			if err != nil {
				continue
			}
			events = append(events, TransferEvent{
				TxHash: tx.Hash().Hex(),
				From:   sender.Hex(),
				To:     toAddr,
				Amount: decimal.NewFromBigInt(tx.Value(), -18), // wei → ETH
				Height: n,
			})
		}
	}

	// ERC-20 转账: 按合约过滤 Transfer 日志
	contracts := make([]common.Address, 0, len(s.tokens))
	byContract := make(map[common.Address]TokenConfig, len(s.tokens))
	for _, t := range s.tokens {
		addr := common.HexToAddress(t.Contract)
		contracts = append(contracts, addr)
		byContract[addr] = t
	}
	if len(contracts) == 0 {
		return events, nil
	}

	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: contracts,
		Topics:    [][]common.Hash{{erc20TransferTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("过滤 Transfer 日志失败: %w", err)
	}
	for _, lg := range logs {
		if len(lg.Topics) != 3 || lg.Removed {
			continue
		}
		toAddr, ok := watched[common.BytesToAddress(lg.Topics[2].Bytes())]
		if !ok {
			continue
		}
		t := byContract[lg.Address]
		amount := new(big.Int).SetBytes(lg.Data)
		events = append(events, TransferEvent{
			TxHash: lg.TxHash.Hex(),
			From:   common.BytesToAddress(lg.Topics[1].Bytes()).Hex(),
			To:     toAddr,
			Token:  t.Symbol,
			Amount: decimal.NewFromBigInt(amount, -t.Decimals),
			Height: lg.BlockNumber,
		})
	}
	return events, nil
}

func (s *EthereumScanner) Confirmations(ctx context.Context, txHash string) (uint64, error) {
	receipt, err := s.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		// 未上链
		if err == ethereum.NotFound {
			return 0, nil
		}
		return 0, err
	}
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	bn := receipt.BlockNumber.Uint64()
	if head < bn {
		return 0, nil
	}
	return head - bn + 1, nil
}

func (s *EthereumScanner) ValidateAddress(address string) bool {
	return common.IsHexAddress(address)
}

func (s *EthereumScanner) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	wei, err := s.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(wei, -18), nil
}

func (s *EthereumScanner) TokenBalance(ctx context.Context, address string, token string) (decimal.Decimal, error) {
	t, ok := s.tokens[token]
	if !ok {
		return decimal.Zero, fmt.Errorf("未配置的代币: %s", token)
	}
	// balanceOf(address)
	data := append(common.Hex2Bytes("70a08231"), common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)...)
	contract := common.HexToAddress(t.Contract)
	out, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(out), -t.Decimals), nil
}

func (s *EthereumScanner) SendNative(ctx context.Context, privateKey string, to string, amount decimal.Decimal) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return "", err
	}
	fromAddr := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := s.client.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return "", err
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", err
	}

	wei := amount.Shift(18).BigInt()
	tx := types.NewTransaction(nonce, common.HexToAddress(to), wei, 21000, gasPrice, nil)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), key)
	if err != nil {
		return "", err
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

func (s *EthereumScanner) SendToken(ctx context.Context, privateKey string, to string, token string, amount decimal.Decimal) (string, error) {
	t, ok := s.tokens[token]
	if !ok {
		return "", fmt.Errorf("未配置的代币: %s", token)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return "", err
	}
	fromAddr := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := s.client.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return "", err
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", err
	}

	// transfer(address,uint256)
	data := common.Hex2Bytes("a9059cbb")
	data = append(data, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Shift(t.Decimals).BigInt().Bytes(), 32)...)

	tx := types.NewTransaction(nonce, common.HexToAddress(t.Contract), big.NewInt(0), 100000, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), key)
	if err != nil {
		return "", err
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

func (s *EthereumScanner) GenerateWallet() (*Keypair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Keypair{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: common.Bytes2Hex(crypto.FromECDSA(key)),
	}, nil
}
