package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig              `mapstructure:"app"`
	DB       DBConfig               `mapstructure:"db"`
	Redis    RedisConfig            `mapstructure:"redis"`
	Chains   map[string]ChainConfig `mapstructure:"chains"`
	Collect  CollectConfig          `mapstructure:"collect"`
	Webhook  WebhookConfig          `mapstructure:"webhook"`
	Order    OrderConfig            `mapstructure:"order"`
	Security SecurityConfig         `mapstructure:"security"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChainConfig 单条链的扫描与出款参数 (key 为链代码: trx / eth / sol)
type ChainConfig struct {
	RpcUrl        string        `mapstructure:"rpc_url"`
	ApiKey        string        `mapstructure:"api_key"`         // TronGrid 等需要的 API Key
	Confirmations uint64        `mapstructure:"confirmations"`   // 入账所需确认数
	ScanInterval  int           `mapstructure:"scan_interval"`   // 扫块间隔 (秒)
	MaxScanBlocks uint64        `mapstructure:"max_scan_blocks"` // 单轮最多扫多少个块
	GasThreshold  string        `mapstructure:"gas_threshold"`   // 归集前源地址最低原生币余额
	GasTopup      string        `mapstructure:"gas_topup"`       // 每次补 gas 的数量
	Tokens        []TokenConfig `mapstructure:"tokens"`          // 受支持代币
}

// TokenConfig 代币合约配置
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Contract string `mapstructure:"contract"`
	Decimals int32  `mapstructure:"decimals"`
}

type CollectConfig struct {
	MinAmount  string `mapstructure:"min_amount"`  // 最低归集金额
	BatchSize  int    `mapstructure:"batch_size"`  // 每轮执行的任务数
	BatchDelay int    `mapstructure:"batch_delay"` // 每笔转账之间的间隔 (秒)
	MaxRetries int    `mapstructure:"max_retries"`
}

type WebhookConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
	Timeout    int `mapstructure:"timeout"` // 单次回调超时 (秒)
}

type OrderConfig struct {
	ExpireMinutes int `mapstructure:"expire_minutes"` // 充值订单有效期
}

type SecurityConfig struct {
	// AES-256-GCM 密钥, base64 编码的 32 字节 (通常通过环境变量 SECURITY_AES_KEY 传入)
	AesKey string `mapstructure:"aes_key"`
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")      // optionally look for config in the working directory
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error if desired
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			// Config file was found but another error was produced
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Chain 返回指定链的配置, 不存在时返回零值与 false
func Chain(code string) (ChainConfig, bool) {
	c, ok := Global.Chains[code]
	return c, ok
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "akx_user")
	viper.SetDefault("db.password", "akx_password")
	viper.SetDefault("db.name", "akx_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	// 各链默认参数: 确认数与扫块间隔
	viper.SetDefault("chains.trx.confirmations", 19)
	viper.SetDefault("chains.trx.scan_interval", 10)
	viper.SetDefault("chains.trx.max_scan_blocks", 100)
	viper.SetDefault("chains.trx.gas_threshold", "15")  // TRX
	viper.SetDefault("chains.trx.gas_topup", "20")
	viper.SetDefault("chains.trx.rpc_url", "https://api.trongrid.io")

	viper.SetDefault("chains.eth.confirmations", 12)
	viper.SetDefault("chains.eth.scan_interval", 15)
	viper.SetDefault("chains.eth.max_scan_blocks", 100)
	viper.SetDefault("chains.eth.gas_threshold", "0.005") // ETH
	viper.SetDefault("chains.eth.gas_topup", "0.01")
	viper.SetDefault("chains.eth.rpc_url", "http://localhost:8545")

	viper.SetDefault("chains.sol.confirmations", 32)
	viper.SetDefault("chains.sol.scan_interval", 5)
	viper.SetDefault("chains.sol.max_scan_blocks", 100)
	viper.SetDefault("chains.sol.gas_threshold", "0.01") // SOL
	viper.SetDefault("chains.sol.gas_topup", "0.02")
	viper.SetDefault("chains.sol.rpc_url", "https://api.mainnet-beta.solana.com")

	viper.SetDefault("collect.min_amount", "10")
	viper.SetDefault("collect.batch_size", 10)
	viper.SetDefault("collect.batch_delay", 2)
	viper.SetDefault("collect.max_retries", 3)

	viper.SetDefault("webhook.max_retries", 3)
	viper.SetDefault("webhook.timeout", 10)

	viper.SetDefault("order.expire_minutes", 30)
}
