package chain

import (
	"fmt"
	"testing"

	"akx-core/pkg/config"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
)

func TestTronValidateAddress(t *testing.T) {
	s := NewTronScanner(config.ChainConfig{RpcUrl: "https://api.trongrid.io"}, nil)

	// USDT 合约地址
	if !s.ValidateAddress("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t") {
		t.Error("合法地址被拒绝: TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	}

	invalid := []string{
		"",
		"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6",  // 长度不对
		"AR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", // 不是 T 开头
		"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj7t", // 校验和错误
		"0x5041a4e29e739bb3ee3c4a1e509ecab6f6021e6a",
	}
	for _, addr := range invalid {
		if s.ValidateAddress(addr) {
			t.Errorf("非法地址被接受: %s", addr)
		}
	}
}

func TestTronHexBase58RoundTrip(t *testing.T) {
	b58, err := tronHexToBase58("41a614f803b6fd780986a42c78ec9c7f77e6ded13c")
	if err != nil {
		t.Fatalf("hex 转 base58 失败: %v", err)
	}
	if b58 != "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t" {
		t.Errorf("地址转换结果错误。得到: %s", b58)
	}

	evm, err := tronBase58ToEVMBytes(b58)
	if err != nil {
		t.Fatalf("base58 转字节失败: %v", err)
	}
	if len(evm) != 20 {
		t.Errorf("EVM 部分应为 20 字节, 得到 %d", len(evm))
	}
}

func TestDecodeTRC20Transfer(t *testing.T) {
	// transfer(to, 100.505 USDT) 的 calldata, 最小单位 100505000
	data := "a9059cbb" +
		"000000000000000000000000" + "6636a3bd00b87683eb1eb35f397cd54ae0b6de3f" +
		fmt.Sprintf("%064x", 100505000)

	toHex, amount, ok := decodeTRC20Transfer(data)
	if !ok {
		t.Fatal("合法 calldata 解析失败")
	}
	if toHex != "416636a3bd00b87683eb1eb35f397cd54ae0b6de3f" {
		t.Errorf("收款地址解析错误: %s", toHex)
	}
	if amount.Int64() != 100505000 {
		t.Errorf("金额解析错误: %d", amount.Int64())
	}

	// 其他选择器不应被解析
	if _, _, ok := decodeTRC20Transfer("095ea7b3" + data[8:]); ok {
		t.Error("approve calldata 不应被当作 transfer")
	}
	// 截断数据
	if _, _, ok := decodeTRC20Transfer("a9059cbb00"); ok {
		t.Error("截断的 calldata 不应解析成功")
	}
}

func TestTronGenerateWallet(t *testing.T) {
	s := NewTronScanner(config.ChainConfig{}, nil)
	kp, err := s.GenerateWallet()
	if err != nil {
		t.Fatalf("生成钱包失败: %v", err)
	}
	if !s.ValidateAddress(kp.Address) {
		t.Errorf("生成的地址未通过校验: %s", kp.Address)
	}
	if len(kp.PrivateKey) != 64 {
		t.Errorf("私钥应为 32 字节 hex, 得到长度 %d", len(kp.PrivateKey))
	}

	// 私钥应能还原出同一地址
	addr, err := tronAddressFromPrivateKey(kp.PrivateKey)
	if err != nil {
		t.Fatalf("私钥推导地址失败: %v", err)
	}
	if addr != kp.Address {
		t.Errorf("私钥推导出的地址不一致。得到: %s, 期望: %s", addr, kp.Address)
	}
}

func TestSolanaValidateAddress(t *testing.T) {
	s := NewSolanaScanner(config.ChainConfig{}, nil)

	if !s.ValidateAddress(solTokenProgram) {
		t.Error("合法地址被拒绝")
	}
	if !s.ValidateAddress(solSystemProgram) {
		t.Error("system program 地址应合法")
	}

	invalid := []string{
		"",
		"short",
		"0OIl+/=nope-not-base58-at-all-here!!",
		"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", // 波场地址只有 21 字节
	}
	for _, addr := range invalid {
		if s.ValidateAddress(addr) {
			t.Errorf("非法地址被接受: %s", addr)
		}
	}
}

func TestSolanaGenerateWallet(t *testing.T) {
	s := NewSolanaScanner(config.ChainConfig{}, nil)
	kp, err := s.GenerateWallet()
	if err != nil {
		t.Fatalf("生成钱包失败: %v", err)
	}
	if !s.ValidateAddress(kp.Address) {
		t.Errorf("生成的地址未通过校验: %s", kp.Address)
	}

	_, pub, err := solKeyFromHex(kp.PrivateKey)
	if err != nil {
		t.Fatalf("私钥恢复失败: %v", err)
	}
	if kp.Address != base58.Encode(pub) {
		t.Error("私钥恢复出的公钥与地址不一致")
	}
}

func TestCompactU16(t *testing.T) {
	cases := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, c := range cases {
		got := compactU16(c.n)
		if len(got) != len(c.want) {
			t.Errorf("compactU16(%d) 长度错误: %v", c.n, got)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("compactU16(%d) = %v, 期望 %v", c.n, got, c.want)
				break
			}
		}
	}
}

func TestNormalizeEthWatch(t *testing.T) {
	checksummed := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	lower := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

	// 库里存的是小写, 链上日志给出校验和大小写, 必须落到同一个键
	m := normalizeEthWatch(map[string]bool{lower: true})
	if len(m) != 1 {
		t.Fatalf("期望 1 个地址, 得到 %d", len(m))
	}
	m2 := normalizeEthWatch(map[string]bool{checksummed: true})
	for addr := range m {
		if _, ok := m2[addr]; !ok {
			t.Error("大小写不同的同一地址应规范化到同一个键")
		}
	}

	// 事件要带回库里存的原始形式, 下游才能按 wallet_address 精确匹配
	if orig := m[common.HexToAddress(checksummed)]; orig != lower {
		t.Errorf("应保留存储形式 %s, 得到 %s", lower, orig)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	tron := NewTronScanner(config.ChainConfig{}, nil)
	r.Register(tron)

	got, err := r.Get(CodeTron)
	if err != nil {
		t.Fatalf("已注册的链取不到: %v", err)
	}
	if got.Code() != CodeTron {
		t.Errorf("取到的链不对: %s", got.Code())
	}

	if _, err := r.Get("btc"); err == nil {
		t.Error("未注册的链应返回错误")
	}
	if len(r.All()) != 1 {
		t.Errorf("All() 应返回 1 个, 得到 %d", len(r.All()))
	}
}
