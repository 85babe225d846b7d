package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum/internal/audit"
	"github.com/wonny/momentum/internal/brain"
	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/internal/strategyconfig"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "모멘텀 백테스트",
	Long: `월간 패널로 horizon × 포트폴리오 크기 조합을 백테스트합니다.

각 조합에 대해:
- winners (상위 N) / losers (하위 N) / WML 수익률
- CAGR, 변동성, Sharpe, Sortino, MDD
- 벤치마크 대비 초과수익 Newey-West HAC 검정

Example:
  go run ./cmd/quant backtest run
  go run ./cmd/quant backtest run --strategy config/strategy/momentum.yaml --save
  go run ./cmd/quant backtest matrix --metric cagr`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행 및 비교 테이블 출력",
		Long: `모든 조합을 실행하고 비교 테이블을 출력합니다.

Flags:
  --refresh   캐시 무시하고 재계산
  --save      결과를 audit 스키마에 저장 (DATABASE_URL 필요)
  --json      JSON 으로 출력
  --git       감사 기록용 git commit

Example:
  go run ./cmd/quant backtest run
  go run ./cmd/quant backtest run --refresh --save --git $(git rev-parse HEAD)`,
		RunE: runBacktest,
	}

	backtestMatrixCmd = &cobra.Command{
		Use:   "matrix",
		Short: "지표 하나를 크기 × horizon 행렬로 출력",
		Long: `지표 이름:
  cagr, volatility, sharpe, sortino, max_drawdown, total_return,
  hac_p_value, naive_p_value, mean_excess

Example:
  go run ./cmd/quant backtest matrix --metric hac_p_value`,
		RunE: runBacktestMatrix,
	}

	// Flags
	backtestRefresh bool
	backtestSave    bool
	backtestJSON    bool
	backtestGit     string
	backtestMetric  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)
	backtestCmd.AddCommand(backtestMatrixCmd)

	backtestRunCmd.Flags().BoolVar(&backtestRefresh, "refresh", false, "캐시 무시")
	backtestRunCmd.Flags().BoolVar(&backtestSave, "save", false, "audit DB 에 저장")
	backtestRunCmd.Flags().BoolVar(&backtestJSON, "json", false, "JSON 출력")
	backtestRunCmd.Flags().StringVar(&backtestGit, "git", "", "git commit (감사 기록)")

	backtestMatrixCmd.Flags().StringVar(&backtestMetric, "metric", brain.MetricSharpe, "지표 이름")
	backtestMatrixCmd.Flags().BoolVar(&backtestRefresh, "refresh", false, "캐시 무시")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	a, err := initApp(ctx, backtestSave)
	if err != nil {
		return err
	}
	defer a.Close()

	table, err := a.service.Compare(ctx, backtestRefresh)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	if backtestJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}

	printComparison(table, a.strategy)

	if backtestSave {
		repo := audit.NewRepository(a.db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		snap, err := strategyconfig.NewDecisionSnapshot(a.strategy, a.yaml, backtestGit, table.PanelID)
		if err != nil {
			return err
		}
		id, err := repo.SaveRun(ctx, snap, table.Reports())
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		PrintSuccess(fmt.Sprintf("Saved audit run #%d (%d reports)", id, len(table.Reports())))
	}

	fmt.Printf("\nCompleted in %.2fs\n", time.Since(start).Seconds())
	return nil
}

func runBacktestMatrix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	table, err := a.service.Compare(ctx, backtestRefresh)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	values, err := table.Matrix(backtestMetric)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("%s (rows = size, columns = horizon)", backtestMetric))
	columns := []string{"N \\ H"}
	widths := []int{8}
	for _, h := range table.Horizons {
		columns = append(columns, fmt.Sprintf("%dM", h))
		widths = append(widths, 12)
	}
	PrintTableHeader(columns, widths)
	for i, n := range table.Sizes {
		row := []string{fmt.Sprintf("%d", n)}
		for _, m := range values[i] {
			row = append(row, formatMetric(backtestMetric, m))
		}
		PrintTableRow(row, widths)
	}
	fmt.Println()
	fmt.Println("*** p<0.001  ** p<0.01  * p<0.05")
	return nil
}

func printComparison(table *brain.ComparisonTable, strategy *strategyconfig.Config) {
	PrintHeader("Momentum Horizon Comparison")
	PrintKeyValue("Strategy", fmt.Sprintf("%s (%s)", table.StrategyID, shortHash(table.ConfigHash)), 12)
	PrintKeyValue("Window", fmt.Sprintf("%s ~ %s", table.Start.Format("2006-01"), table.End.Format("2006-01")), 12)
	PrintKeyValue("Common start", fmt.Sprintf("%t", table.CommonStart), 12)
	PrintKeyValue("Skip", fmt.Sprintf("%d month(s)", strategy.Signals.Skip), 12)
	PrintKeyValue("HAC", fmt.Sprintf("lag=%s, dist=%s", strategy.Significance.LagRule, strategy.Significance.Distribution), 12)
	PrintSeparator()
	fmt.Println()

	columns := []string{"Portfolio", "CAGR", "Vol", "Sharpe", "Sortino", "MDD", "p-HAC", "p-naive", "Degraded"}
	widths := []int{18, 9, 9, 7, 7, 9, 10, 10, 8}
	PrintTableHeader(columns, widths)

	if b := table.Benchmark; b != nil {
		PrintTableRow([]string{
			"Benchmark", formatPercent(b.CAGR), formatPercent(b.Volatility),
			formatRatio(b.Sharpe), formatRatio(b.Sortino), formatPercent(b.MaxDrawdown), "-", "-", "-",
		}, widths)
	}

	for _, c := range table.Cells {
		if !c.OK() {
			PrintTableRow([]string{c.Key.String(), "error", "", "", "", "", "", "", ""}, widths)
			continue
		}
		for _, leg := range []*brain.LegResult{c.Winners, c.Losers, c.WML} {
			if leg == nil {
				continue
			}
			PrintTableRow(reportRow(leg.Report), widths)
		}
	}
	fmt.Println()
	fmt.Println("*** p<0.001  ** p<0.01  * p<0.05  (winners/losers vs benchmark, WML vs 0)")

	if failed := table.Failed(); len(failed) > 0 {
		fmt.Println()
		PrintWarning(fmt.Sprintf("%d combination(s) failed", len(failed)))
		items := make([]string, 0, len(failed))
		for _, c := range failed {
			items = append(items, fmt.Sprintf("%s [%s]: %s", c.Key, failedStage(c), c.Err))
		}
		PrintList(items)
	}

	best := table.BestByHorizon()
	if len(best) > 0 {
		fmt.Println()
		fmt.Println("🏆 Best size per horizon (winners Sharpe)")
		for _, h := range table.Horizons {
			if key, ok := best[h]; ok {
				cell, _ := table.Get(key.Horizon, key.Size)
				PrintKeyValue(fmt.Sprintf("%dM", h), fmt.Sprintf("N=%d  Sharpe %s", key.Size, formatRatio(cell.Winners.Report.Sharpe)), 4)
			}
		}
	}
}

// failedStage names the stage after the last completed one
func failedStage(c *brain.Cell) string {
	stages := contracts.AllStages()
	next := stages[1] // S0 passed before any combination ran
	if n := len(c.CompletedStages); n > 0 {
		last := c.CompletedStages[n-1]
		for i, s := range stages {
			if s == last && i+1 < len(stages) {
				next = stages[i+1]
			}
		}
	}
	return fmt.Sprintf("%s %s", next.ShortName(), next.Description())
}

func reportRow(r *contracts.MetricsReport) []string {
	pHAC, pNaive := "-", "-"
	if s := r.Significance; s != nil {
		pHAC, pNaive = formatPValue(s.HACPValue), formatPValue(s.NaivePValue)
	}
	name := strings.TrimSuffix(r.Name, "_"+string(contracts.LegWinners))
	return []string{
		name,
		formatPercent(r.CAGR),
		formatPercent(r.Volatility),
		formatRatio(r.Sharpe),
		formatRatio(r.Sortino),
		formatPercent(r.MaxDrawdown),
		pHAC,
		pNaive,
		fmt.Sprintf("%d", r.DegradedRebalances),
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
