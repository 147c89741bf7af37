package chain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"akx-core/pkg/config"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// TRC-20 transfer(address,uint256) 函数选择器
const trc20TransferSelector = "a9059cbb"

// TronScanner 通过 TronGrid HTTP API 访问波场
type TronScanner struct {
	baseURL string
	apiKey  string
	tokens  map[string]TokenConfig // symbol → contract
	client  *http.Client
}

func NewTronScanner(cfg config.ChainConfig, tokens []TokenConfig) *TronScanner {
	m := make(map[string]TokenConfig, len(tokens))
	for _, t := range tokens {
		m[t.Symbol] = t
	}
	return &TronScanner{
		baseURL: strings.TrimRight(cfg.RpcUrl, "/"),
		apiKey:  cfg.ApiKey,
		tokens:  m,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *TronScanner) Code() string { return CodeTron }

func (s *TronScanner) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trongrid %s: http %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *TronScanner) CurrentHeight(ctx context.Context) (uint64, error) {
	var resp struct {
		BlockHeader struct {
			RawData struct {
				Number uint64 `json:"number"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := s.post(ctx, "/wallet/getnowblock", map[string]interface{}{}, &resp); err != nil {
		return 0, err
	}
	return resp.BlockHeader.RawData.Number, nil
}

// tronBlock 按需解码的块结构
type tronBlock struct {
	BlockHeader struct {
		RawData struct {
			Number uint64 `json:"number"`
		} `json:"raw_data"`
	} `json:"block_header"`
	Transactions []struct {
		TxID string `json:"txID"`
		Ret  []struct {
			ContractRet string `json:"contractRet"`
		} `json:"ret"`
		RawData struct {
			Contract []struct {
				Type      string `json:"type"`
				Parameter struct {
					Value struct {
						OwnerAddress    string `json:"owner_address"`
						ToAddress       string `json:"to_address"`
						ContractAddress string `json:"contract_address"`
						Amount          int64  `json:"amount"`
						Data            string `json:"data"`
					} `json:"value"`
				} `json:"parameter"`
			} `json:"contract"`
		} `json:"raw_data"`
	} `json:"transactions"`
}

func (s *TronScanner) ScanRange(ctx context.Context, from, to uint64, watch map[string]bool) ([]TransferEvent, error) {
	var resp struct {
		Block []tronBlock `json:"block"`
	}
	// endNum 为开区间
	body := map[string]interface{}{"startNum": from, "endNum": to + 1}
	if err := s.post(ctx, "/wallet/getblockbylimitnext", body, &resp); err != nil {
		return nil, err
	}

	var events []TransferEvent
	for _, blk := range resp.Block {
		height := blk.BlockHeader.RawData.Number
		for _, tx := range blk.Transactions {
			if len(tx.RawData.Contract) == 0 {
				continue
			}
			// 失败的交易不入账
			if len(tx.Ret) > 0 && tx.Ret[0].ContractRet != "SUCCESS" {
				continue
			}
			c := tx.RawData.Contract[0]
			v := c.Parameter.Value

			switch c.Type {
			case "TransferContract":
				// 原生 TRX 转账
				toAddr, err := tronHexToBase58(v.ToAddress)
				if err != nil || !watch[toAddr] {
					continue
				}
				fromAddr, _ := tronHexToBase58(v.OwnerAddress)
				events = append(events, TransferEvent{
					TxHash: tx.TxID,
					From:   fromAddr,
					To:     toAddr,
					Amount: decimal.New(v.Amount, -6), // sun → TRX
					Height: height,
				})

			case "TriggerSmartContract":
				contractAddr, err := tronHexToBase58(v.ContractAddress)
				if err != nil {
					continue
				}
				symbol, token, ok := s.tokenByContract(contractAddr)
				if !ok {
					continue
				}
				toHex, amount, ok := decodeTRC20Transfer(v.Data)
				if !ok {
					continue
				}
				toAddr, err := tronHexToBase58(toHex)
				if err != nil || !watch[toAddr] {
					continue
				}
				fromAddr, _ := tronHexToBase58(v.OwnerAddress)
				events = append(events, TransferEvent{
					TxHash: tx.TxID,
					From:   fromAddr,
					To:     toAddr,
					Token:  symbol,
					Amount: decimal.NewFromBigInt(amount, -token.Decimals),
					Height: height,
				})
			}
		}
	}
	return events, nil
}

func (s *TronScanner) tokenByContract(contract string) (string, TokenConfig, bool) {
	for symbol, t := range s.tokens {
		if t.Contract == contract {
			return symbol, t, true
		}
	}
	return "", TokenConfig{}, false
}

// decodeTRC20Transfer 解析 transfer(address,uint256) 的 calldata
// 返回 41 前缀的十六进制收款地址与最小单位金额
func decodeTRC20Transfer(data string) (string, *big.Int, bool) {
	data = strings.TrimPrefix(strings.ToLower(data), "0x")
	if len(data) < 8+64+64 || !strings.HasPrefix(data, trc20TransferSelector) {
		return "", nil, false
	}
	// 第一个参数: 32 字节左填充地址, 取后 20 字节
	toHex := "41" + data[8+24:8+64]
	amount, ok := new(big.Int).SetString(data[8+64:8+128], 16)
	if !ok {
		return "", nil, false
	}
	return toHex, amount, true
}

// tronHexToBase58 把 41 前缀的十六进制地址转为 T 开头的 base58check 地址
func tronHexToBase58(hexAddr string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexAddr, "0x"))
	if err != nil {
		return "", err
	}
	if len(raw) != 21 || raw[0] != 0x41 {
		return "", errors.New("不是合法的波场地址字节")
	}
	return base58.CheckEncode(raw[1:], 0x41), nil
}

// tronBase58ToEVMBytes 返回地址的 20 字节 EVM 部分
func tronBase58ToEVMBytes(addr string) ([]byte, error) {
	raw, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, err
	}
	if version != 0x41 || len(raw) != 20 {
		return nil, errors.New("不是合法的波场地址")
	}
	return raw, nil
}

func (s *TronScanner) Confirmations(ctx context.Context, txHash string) (uint64, error) {
	var info struct {
		BlockNumber uint64 `json:"blockNumber"`
	}
	if err := s.post(ctx, "/wallet/gettransactioninfobyid", map[string]string{"value": txHash}, &info); err != nil {
		return 0, err
	}
	if info.BlockNumber == 0 {
		return 0, nil
	}
	head, err := s.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}
	if head < info.BlockNumber {
		return 0, nil
	}
	return head - info.BlockNumber + 1, nil
}

func (s *TronScanner) ValidateAddress(address string) bool {
	if len(address) != 34 || !strings.HasPrefix(address, "T") {
		return false
	}
	_, err := tronBase58ToEVMBytes(address)
	return err == nil
}

func (s *TronScanner) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Balance int64 `json:"balance"`
	}
	body := map[string]interface{}{"address": address, "visible": true}
	if err := s.post(ctx, "/wallet/getaccount", body, &resp); err != nil {
		return decimal.Zero, err
	}
	return decimal.New(resp.Balance, -6), nil
}

func (s *TronScanner) TokenBalance(ctx context.Context, address string, token string) (decimal.Decimal, error) {
	t, ok := s.tokens[token]
	if !ok {
		return decimal.Zero, fmt.Errorf("未配置的代币: %s", token)
	}
	param, err := tronABIAddress(address)
	if err != nil {
		return decimal.Zero, err
	}
	var resp struct {
		ConstantResult []string `json:"constant_result"`
	}
	body := map[string]interface{}{
		"owner_address":     address,
		"contract_address":  t.Contract,
		"function_selector": "balanceOf(address)",
		"parameter":         param,
		"visible":           true,
	}
	if err := s.post(ctx, "/wallet/triggerconstantcontract", body, &resp); err != nil {
		return decimal.Zero, err
	}
	if len(resp.ConstantResult) == 0 {
		return decimal.Zero, nil
	}
	raw, ok := new(big.Int).SetString(resp.ConstantResult[0], 16)
	if !ok {
		return decimal.Zero, errors.New("balanceOf 返回值解析失败")
	}
	return decimal.NewFromBigInt(raw, -t.Decimals), nil
}

// tronABIAddress 把地址编码为 32 字节左填充的 ABI 参数
func tronABIAddress(addr string) (string, error) {
	evm, err := tronBase58ToEVMBytes(addr)
	if err != nil {
		return "", err
	}
	return strings.Repeat("0", 24) + hex.EncodeToString(evm), nil
}

func (s *TronScanner) SendNative(ctx context.Context, privateKey string, to string, amount decimal.Decimal) (string, error) {
	fromAddr, err := tronAddressFromPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	var tx map[string]interface{}
	body := map[string]interface{}{
		"owner_address": fromAddr,
		"to_address":    to,
		"amount":        amount.Shift(6).BigInt(),
		"visible":       true,
	}
	if err := s.post(ctx, "/wallet/createtransaction", body, &tx); err != nil {
		return "", err
	}
	return s.signAndBroadcast(ctx, tx, privateKey)
}

func (s *TronScanner) SendToken(ctx context.Context, privateKey string, to string, token string, amount decimal.Decimal) (string, error) {
	t, ok := s.tokens[token]
	if !ok {
		return "", fmt.Errorf("未配置的代币: %s", token)
	}
	fromAddr, err := tronAddressFromPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	toParam, err := tronABIAddress(to)
	if err != nil {
		return "", err
	}
	amountParam := fmt.Sprintf("%064x", amount.Shift(t.Decimals).BigInt())

	var resp struct {
		Transaction map[string]interface{} `json:"transaction"`
		Result      struct {
			Result  bool   `json:"result"`
			Message string `json:"message"`
		} `json:"result"`
	}
	body := map[string]interface{}{
		"owner_address":     fromAddr,
		"contract_address":  t.Contract,
		"function_selector": "transfer(address,uint256)",
		"parameter":         toParam + amountParam,
		"fee_limit":         100000000, // 100 TRX 上限
		"call_value":        0,
		"visible":           true,
	}
	if err := s.post(ctx, "/wallet/triggersmartcontract", body, &resp); err != nil {
		return "", err
	}
	if !resp.Result.Result || resp.Transaction == nil {
		return "", fmt.Errorf("构建 TRC-20 交易失败: %s", resp.Result.Message)
	}
	return s.signAndBroadcast(ctx, resp.Transaction, privateKey)
}

// signAndBroadcast 对 raw_data_hex 做 sha256 后用 secp256k1 签名并广播
func (s *TronScanner) signAndBroadcast(ctx context.Context, tx map[string]interface{}, privateKey string) (string, error) {
	rawHex, _ := tx["raw_data_hex"].(string)
	if rawHex == "" {
		return "", errors.New("交易缺少 raw_data_hex")
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(raw)

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return "", err
	}
	sig, err := ethcrypto.Sign(digest[:], key)
	if err != nil {
		return "", err
	}
	tx["signature"] = []string{hex.EncodeToString(sig)}

	var resp struct {
		Result  bool   `json:"result"`
		TxID    string `json:"txid"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := s.post(ctx, "/wallet/broadcasttransaction", tx, &resp); err != nil {
		return "", err
	}
	if !resp.Result {
		return "", fmt.Errorf("广播失败: %s %s", resp.Code, resp.Message)
	}
	txID := resp.TxID
	if txID == "" {
		txID = hex.EncodeToString(digest[:])
	}
	return txID, nil
}

func (s *TronScanner) GenerateWallet() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	addr, err := tronAddressFromPrivateKey(hex.EncodeToString(priv.Serialize()))
	if err != nil {
		return nil, err
	}
	return &Keypair{
		Address:    addr,
		PrivateKey: hex.EncodeToString(priv.Serialize()),
	}, nil
}

// tronAddressFromPrivateKey 由私钥推导 T 开头地址: keccak256(pubkey)[12:] 加 0x41 前缀
func tronAddressFromPrivateKey(privateKey string) (string, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return "", err
	}
	pub := ethcrypto.FromECDSAPub(&key.PublicKey)
	digest := ethcrypto.Keccak256(pub[1:])
	return base58.CheckEncode(digest[12:], 0x41), nil
}
