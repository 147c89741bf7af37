package cmd

import (
	"fmt"

	"akx-core/pkg/crypto_util"

	"github.com/spf13/cobra"
)

// genkeyCmd 生成 AES-256 主密钥
var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "生成 AES-256 私钥加密密钥",
	Long:  `生成 base64 编码的 32 字节随机密钥, 用于配置 security.aes_key。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto_util.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println("---------------------------------------------------")
		fmt.Printf("AES Key (base64): %s\n", key)
		fmt.Println("---------------------------------------------------")
		fmt.Println("请妥善保管该密钥！丢失后已加密的钱包私钥将无法恢复。")
		return nil
	},
}

var genwalletChain string

// genwalletCmd 生成链上钱包
var genwalletCmd = &cobra.Command{
	Use:   "genwallet",
	Short: "生成指定链的钱包密钥对",
	Long:  `离线生成一个新的链上地址与私钥, 私钥以 hex 明文打印, 仅限运维手工入库前使用。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := bootstrap()
		if err != nil {
			return err
		}
		scanner, err := d.registry.Get(genwalletChain)
		if err != nil {
			return err
		}
		keypair, err := scanner.GenerateWallet()
		if err != nil {
			return err
		}
		fmt.Println("---------------------------------------------------")
		fmt.Printf("Chain:       %s\n", genwalletChain)
		fmt.Printf("Address:     %s\n", keypair.Address)
		fmt.Printf("Private Key: %s\n", keypair.PrivateKey)
		fmt.Println("---------------------------------------------------")
		fmt.Println("私钥为明文输出, 入库前必须用 AES 密钥加密！")
		return nil
	},
}

func init() {
	genwalletCmd.Flags().StringVar(&genwalletChain, "chain", "trx", "链代码 (trx/eth/sol)")
	rootCmd.AddCommand(genkeyCmd)
	rootCmd.AddCommand(genwalletCmd)
}
