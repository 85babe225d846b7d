package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/momentum/internal/strategyconfig"
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "전략 설정 검증 및 출력",
}

var strategyValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "전략 YAML 검증",
	Long: `전략 YAML 을 읽어 검증하고 경고와 해시를 출력합니다.
인자가 없으면 기본 전략을 검증합니다.

Example:
  go run ./cmd/quant strategy validate config/strategy/momentum.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStrategyValidate,
}

var strategyShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "기본값이 채워진 전략 YAML 출력",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStrategyShow,
}

func init() {
	rootCmd.AddCommand(strategyCmd)
	strategyCmd.AddCommand(strategyValidateCmd)
	strategyCmd.AddCommand(strategyShowCmd)
}

func loadStrategyArg(args []string) (*strategyconfig.Config, error) {
	if len(args) == 0 {
		return strategyconfig.Default(), nil
	}
	cfg, _, err := strategyconfig.Load(args[0])
	return cfg, err
}

func runStrategyValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadStrategyArg(args)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return err
	}

	PrintHeader("Strategy " + cfg.Meta.StrategyID)
	PrintKeyValue("Version", cfg.Meta.Version, 10)
	PrintKeyValue("Hash", shortHash(hash), 10)
	PrintKeyValue("Horizons", joinInts(cfg.Signals.Horizons), 10)
	PrintKeyValue("Sizes", joinInts(cfg.Portfolio.Sizes), 10)
	PrintKeyValue("Losers", fmt.Sprintf("%t", cfg.Portfolio.Losers), 10)
	PrintKeyValue("Delisting", cfg.Portfolio.DelistingPolicy, 10)
	PrintSeparator()

	warnings := strategyconfig.Warn(cfg)
	for _, w := range warnings {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	PrintSuccess("Strategy is valid")
	return nil
}

func runStrategyShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadStrategyArg(args)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
