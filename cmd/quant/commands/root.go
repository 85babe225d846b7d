package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	panelPath    string
	workers      int
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Momentum - 횡단면 모멘텀 백테스터",
	Long: `Momentum Unified CLI

월간 가격 패널로 횡단면 모멘텀 전략을 백테스트합니다.
horizon × 포트폴리오 크기 조합별 성과와 Newey-West 유의성을 비교합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant backtest run
  go run ./cmd/quant backtest matrix --metric hac_p_value
  go run ./cmd/quant data check
  go run ./cmd/quant strategy validate config/strategy/momentum.yaml
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags (환경변수보다 우선)
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: STRATEGY_FILE or built-in)")
	rootCmd.PersistentFlags().StringVar(&panelPath, "panel", "", "monthly levels CSV (default: PANEL_PATH)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "parallel combinations (default: WORKERS)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
