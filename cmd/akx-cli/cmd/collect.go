package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	collectChain  string
	collectDryRun bool
)

// collectCmd 手动触发资金归集
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "资金归集",
}

var collectScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "扫描充值地址并创建归集任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := bootstrap()
		if err != nil {
			return err
		}
		for _, scanner := range d.registry.All() {
			if collectChain != "" && scanner.Code() != collectChain {
				continue
			}
			fmt.Printf("扫描链 %s ...\n", scanner.Code())
			if err := d.collect.ScanForCollection(context.Background(), scanner.Code()); err != nil {
				return err
			}
		}
		return nil
	},
}

var collectExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "执行待归集任务",
	Long:  `执行 pending 状态的归集任务。--dry-run 只打印将要发生的转账, 不广播。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := bootstrap()
		if err != nil {
			return err
		}
		for _, scanner := range d.registry.All() {
			if collectChain != "" && scanner.Code() != collectChain {
				continue
			}
			fmt.Printf("执行链 %s 的归集任务 (dry-run=%v) ...\n", scanner.Code(), collectDryRun)
			if err := d.collect.ExecuteTasks(context.Background(), scanner.Code(), collectDryRun); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	collectCmd.PersistentFlags().StringVar(&collectChain, "chain", "", "只处理指定链 (trx/eth/sol), 默认全部")
	collectExecuteCmd.Flags().BoolVar(&collectDryRun, "dry-run", false, "只打印不广播")

	collectCmd.AddCommand(collectScanCmd)
	collectCmd.AddCommand(collectExecuteCmd)
	rootCmd.AddCommand(collectCmd)
}
