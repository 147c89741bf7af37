package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sweepChain string

// sweepCmd 手动触发清扫
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "清扫充值地址 (含 gas 补给)",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := bootstrap()
		if err != nil {
			return err
		}
		for _, scanner := range d.registry.All() {
			if sweepChain != "" && scanner.Code() != sweepChain {
				continue
			}
			fmt.Printf("清扫链 %s ...\n", scanner.Code())
			if err := d.sweeper.SweepChain(context.Background(), scanner.Code()); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepChain, "chain", "", "只处理指定链 (trx/eth/sol), 默认全部")
	rootCmd.AddCommand(sweepCmd)
}
