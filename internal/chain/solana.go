package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"akx-core/pkg/config"
	"akx-core/pkg/safe_random"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
)

const (
	solSystemProgram = "11111111111111111111111111111111"
	solTokenProgram  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

// SolanaScanner 通过 JSON-RPC 访问 Solana
type SolanaScanner struct {
	rpcURL   string
	finality uint64                 // 视为最终的确认数
	tokens   map[string]TokenConfig // symbol → mint
	client   *http.Client
}

func NewSolanaScanner(cfg config.ChainConfig, tokens []TokenConfig) *SolanaScanner {
	m := make(map[string]TokenConfig, len(tokens))
	for _, t := range tokens {
		m[t.Symbol] = t
	}
	return &SolanaScanner{
		rpcURL:   cfg.RpcUrl,
		finality: cfg.Confirmations,
		tokens:   m,
		client:   &http.Client{Timeout: 20 * time.Second},
	}
}

func (s *SolanaScanner) Code() string { return CodeSolana }

type solRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *SolanaScanner) rpcCall(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.rpcURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *solRPCError    `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if envelope.Error != nil {
		return fmt.Errorf("solana rpc %s: %d %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

func (s *SolanaScanner) CurrentHeight(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := s.rpcCall(ctx, "getSlot", []interface{}{map[string]string{"commitment": "confirmed"}}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// solTokenBalance getBlock 返回的 pre/postTokenBalances 条目
type solTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals int32  `json:"decimals"`
	} `json:"uiTokenAmount"`
}

type solBlock struct {
	Transactions []struct {
		Transaction struct {
			Signatures []string `json:"signatures"`
			Message    struct {
				Instructions []struct {
					Program string `json:"program"`
					Parsed  struct {
						Type string `json:"type"`
						Info struct {
							Source      string `json:"source"`
							Destination string `json:"destination"`
							Lamports    uint64 `json:"lamports"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"instructions"`
			} `json:"message"`
		} `json:"transaction"`
		Meta struct {
			Err               interface{}       `json:"err"`
			PreTokenBalances  []solTokenBalance `json:"preTokenBalances"`
			PostTokenBalances []solTokenBalance `json:"postTokenBalances"`
		} `json:"meta"`
	} `json:"transactions"`
}

func (s *SolanaScanner) ScanRange(ctx context.Context, from, to uint64, watch map[string]bool) ([]TransferEvent, error) {
	var events []TransferEvent
	for slot := from; slot <= to; slot++ {
		var block solBlock
		err := s.rpcCall(ctx, "getBlock", []interface{}{
			slot,
			map[string]interface{}{
				"encoding":                       "jsonParsed",
				"transactionDetails":             "full",
				"rewards":                        false,
				"maxSupportedTransactionVersion": 0,
			},
		}, &block)
		if err != nil {
			// 被跳过的 slot 没有区块, 不算错误
			if strings.Contains(err.Error(), "-32007") || strings.Contains(err.Error(), "-32009") {
				continue
			}
			return nil, err
		}

		for _, tx := range block.Transactions {
			if tx.Meta.Err != nil || len(tx.Transaction.Signatures) == 0 {
				continue
			}
			sig := tx.Transaction.Signatures[0]

			// 原生 SOL: 解析 system transfer 指令
			for _, ins := range tx.Transaction.Message.Instructions {
				if ins.Program != "system" || ins.Parsed.Type != "transfer" {
					continue
				}
				if !watch[ins.Parsed.Info.Destination] {
					continue
				}
				events = append(events, TransferEvent{
					TxHash: sig,
					From:   ins.Parsed.Info.Source,
					To:     ins.Parsed.Info.Destination,
					Amount: decimal.New(int64(ins.Parsed.Info.Lamports), -9),
					Height: slot,
				})
			}

			// SPL 代币: 用 pre/post 代币余额差值归属到 owner, 不依赖指令形态
			events = append(events, s.tokenDeltas(tx.Meta.PreTokenBalances, tx.Meta.PostTokenBalances, watch, sig, slot)...)
		}
	}
	return events, nil
}

// tokenDeltas 计算每个 (owner, mint) 的余额变化, 正增量即入账
func (s *SolanaScanner) tokenDeltas(pre, post []solTokenBalance, watch map[string]bool, sig string, slot uint64) []TransferEvent {
	type key struct{ owner, mint string }
	deltas := make(map[key]*big.Int)
	decimalsOf := make(map[key]int32)

	add := func(list []solTokenBalance, sign int64) {
		for _, b := range list {
			amt, ok := new(big.Int).SetString(b.UITokenAmount.Amount, 10)
			if !ok {
				continue
			}
			k := key{b.Owner, b.Mint}
			if deltas[k] == nil {
				deltas[k] = new(big.Int)
			}
			deltas[k].Add(deltas[k], new(big.Int).Mul(amt, big.NewInt(sign)))
			decimalsOf[k] = b.UITokenAmount.Decimals
		}
	}
	add(post, 1)
	add(pre, -1)

	var events []TransferEvent
	for k, d := range deltas {
		if d.Sign() <= 0 || !watch[k.owner] {
			continue
		}
		symbol, _, ok := s.tokenByMint(k.mint)
		if !ok {
			continue
		}
		// 同笔交易里余额减少的 owner 即付款方
		var from string
		for k2, d2 := range deltas {
			if k2.mint == k.mint && d2.Sign() < 0 {
				from = k2.owner
				break
			}
		}
		events = append(events, TransferEvent{
			TxHash: sig,
			From:   from,
			To:     k.owner,
			Token:  symbol,
			Amount: decimal.NewFromBigInt(d, -decimalsOf[k]),
			Height: slot,
		})
	}
	return events
}

func (s *SolanaScanner) tokenByMint(mint string) (string, TokenConfig, bool) {
	for symbol, t := range s.tokens {
		if t.Contract == mint {
			return symbol, t, true
		}
	}
	return "", TokenConfig{}, false
}

func (s *SolanaScanner) Confirmations(ctx context.Context, txHash string) (uint64, error) {
	var resp struct {
		Value []*struct {
			Confirmations      *uint64 `json:"confirmations"`
			ConfirmationStatus string  `json:"confirmationStatus"`
		} `json:"value"`
	}
	err := s.rpcCall(ctx, "getSignatureStatuses", []interface{}{
		[]string{txHash},
		map[string]bool{"searchTransactionHistory": true},
	}, &resp)
	if err != nil {
		return 0, err
	}
	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return 0, nil
	}
	st := resp.Value[0]
	if st.Confirmations != nil {
		return *st.Confirmations, nil
	}
	// confirmations 为 null 表示已最终化
	if st.ConfirmationStatus == "finalized" {
		return s.finality, nil
	}
	return 0, nil
}

func (s *SolanaScanner) ValidateAddress(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	raw := base58.Decode(address)
	return len(raw) == 32
}

func (s *SolanaScanner) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Value uint64 `json:"value"`
	}
	if err := s.rpcCall(ctx, "getBalance", []interface{}{address}, &resp); err != nil {
		return decimal.Zero, err
	}
	return decimal.New(int64(resp.Value), -9), nil
}

func (s *SolanaScanner) TokenBalance(ctx context.Context, address string, token string) (decimal.Decimal, error) {
	t, ok := s.tokens[token]
	if !ok {
		return decimal.Zero, fmt.Errorf("未配置的代币: %s", token)
	}
	accounts, err := s.tokenAccounts(ctx, address, t.Contract)
	if err != nil {
		return decimal.Zero, err
	}
	total := new(big.Int)
	for _, a := range accounts {
		amt, ok := new(big.Int).SetString(a.amount, 10)
		if ok {
			total.Add(total, amt)
		}
	}
	return decimal.NewFromBigInt(total, -t.Decimals), nil
}

type solTokenAccount struct {
	pubkey string
	amount string
}

func (s *SolanaScanner) tokenAccounts(ctx context.Context, owner string, mint string) ([]solTokenAccount, error) {
	var resp struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	err := s.rpcCall(ctx, "getTokenAccountsByOwner", []interface{}{
		owner,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := make([]solTokenAccount, 0, len(resp.Value))
	for _, v := range resp.Value {
		out = append(out, solTokenAccount{pubkey: v.Pubkey, amount: v.Account.Data.Parsed.Info.TokenAmount.Amount})
	}
	return out, nil
}

func (s *SolanaScanner) SendNative(ctx context.Context, privateKey string, to string, amount decimal.Decimal) (string, error) {
	key, pub, err := solKeyFromHex(privateKey)
	if err != nil {
		return "", err
	}
	from := base58.Encode(pub)
	lamports := amount.Shift(9).BigInt().Uint64()

	// system transfer: u32(2) + u64(lamports)
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	msg, err := s.buildMessage(ctx,
		[]string{from, to, solSystemProgram},
		1, 0, 1, // 1 个签名者, 只读非签名账户 1 个 (system program)
		solInstruction{programIndex: 2, accounts: []byte{0, 1}, data: data},
	)
	if err != nil {
		return "", err
	}
	return s.signAndSend(ctx, key, msg)
}

func (s *SolanaScanner) SendToken(ctx context.Context, privateKey string, to string, token string, amount decimal.Decimal) (string, error) {
	t, ok := s.tokens[token]
	if !ok {
		return "", fmt.Errorf("未配置的代币: %s", token)
	}
	key, pub, err := solKeyFromHex(privateKey)
	if err != nil {
		return "", err
	}
	owner := base58.Encode(pub)

	source, err := s.tokenAccounts(ctx, owner, t.Contract)
	if err != nil {
		return "", err
	}
	if len(source) == 0 {
		return "", errors.New("付款方没有代币账户")
	}
	dest, err := s.tokenAccounts(ctx, to, t.Contract)
	if err != nil {
		return "", err
	}
	if len(dest) == 0 {
		// 创建关联账户需要额外租金处理, 这里要求收款方已初始化
		return "", errors.New("收款方没有代币账户")
	}

	// spl-token transfer: u8(3) + u64(amount)
	raw := amount.Shift(t.Decimals).BigInt().Uint64()
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:9], raw)

	msg, err := s.buildMessage(ctx,
		[]string{owner, source[0].pubkey, dest[0].pubkey, solTokenProgram},
		1, 0, 1,
		solInstruction{programIndex: 3, accounts: []byte{1, 2, 0}, data: data},
	)
	if err != nil {
		return "", err
	}
	return s.signAndSend(ctx, key, msg)
}

type solInstruction struct {
	programIndex byte
	accounts     []byte
	data         []byte
}

// buildMessage 组装 legacy 消息: header + 账户表 + 最新 blockhash + 指令
func (s *SolanaScanner) buildMessage(ctx context.Context, accountKeys []string, numSigners, numReadonlySigned, numReadonlyUnsigned byte, ins solInstruction) ([]byte, error) {
	var bh struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := s.rpcCall(ctx, "getLatestBlockhash", []interface{}{map[string]string{"commitment": "confirmed"}}, &bh); err != nil {
		return nil, err
	}
	blockhash := base58.Decode(bh.Value.Blockhash)
	if len(blockhash) != 32 {
		return nil, errors.New("blockhash 解析失败")
	}

	var msg bytes.Buffer
	msg.Write([]byte{numSigners, numReadonlySigned, numReadonlyUnsigned})
	msg.Write(compactU16(len(accountKeys)))
	for _, k := range accountKeys {
		raw := base58.Decode(k)
		if len(raw) != 32 {
			return nil, fmt.Errorf("非法地址: %s", k)
		}
		msg.Write(raw)
	}
	msg.Write(blockhash)
	msg.Write(compactU16(1)) // 单指令
	msg.WriteByte(ins.programIndex)
	msg.Write(compactU16(len(ins.accounts)))
	msg.Write(ins.accounts)
	msg.Write(compactU16(len(ins.data)))
	msg.Write(ins.data)
	return msg.Bytes(), nil
}

func (s *SolanaScanner) signAndSend(ctx context.Context, key ed25519.PrivateKey, msg []byte) (string, error) {
	sig := ed25519.Sign(key, msg)

	var tx bytes.Buffer
	tx.Write(compactU16(1))
	tx.Write(sig)
	tx.Write(msg)

	var out string
	err := s.rpcCall(ctx, "sendTransaction", []interface{}{
		base64.StdEncoding.EncodeToString(tx.Bytes()),
		map[string]string{"encoding": "base64"},
	}, &out)
	if err != nil {
		return "", err
	}
	return out, nil
}

// compactU16 是 Solana 的变长长度编码
func compactU16(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// solKeyFromHex 从 32 字节种子恢复 ed25519 密钥对
func solKeyFromHex(privateKey string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, nil, err
	}
	if len(seed) < ed25519.SeedSize {
		return nil, nil, errors.New("私钥种子长度不足 32 字节")
	}
	key := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	return key, key.Public().(ed25519.PublicKey), nil
}

func (s *SolanaScanner) GenerateWallet() (*Keypair, error) {
	seed, err := safe_random.GenerateRandomBytes(ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	key := ed25519.NewKeyFromSeed(seed)
	pub := key.Public().(ed25519.PublicKey)
	return &Keypair{
		Address:    base58.Encode(pub),
		PrivateKey: hex.EncodeToString(seed),
	}, nil
}
