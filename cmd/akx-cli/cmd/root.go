package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "akx-cli",
	Short: "支付结算系统运维工具",
	Long: `AKX 支付结算系统的命令行运维工具。
支持生成钱包密钥、手动触发资金归集与清扫。`,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
