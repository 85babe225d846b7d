package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum/internal/s0_data"
	"github.com/wonny/momentum/internal/s0_data/quality"
)

// dataCmd groups data commands
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "S0 데이터 점검 및 적재",
}

// dataCheckCmd represents the data check command
var dataCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "패널 데이터 품질 확인",
	Long: `설정된 패널(CSV 또는 postgres)을 읽어 품질을 확인합니다.

확인 항목:
- 날짜/종목 수, 관측치
- 상장 기간 내 결측 (interior gaps)
- 잘못된 가격 (≤ 0, NaN, Inf)
- 시가총액 커버리지
- 벤치마크 누락 월

Example:
  go run ./cmd/quant data check
  go run ./cmd/quant data check --panel data/raw/Monthly_Data.csv --min-coverage 0.9`,
	RunE: runDataCheck,
}

// dataImportCmd copies a CSV panel into postgres
var dataImportCmd = &cobra.Command{
	Use:   "import",
	Short: "CSV 패널을 postgres 로 적재",
	Long: `CSV 패널과 벤치마크를 data.monthly_prices / data.benchmark_prices 에 upsert 합니다.

Example:
  go run ./cmd/quant data import --panel data/raw/Monthly_Data.csv --caps data/raw/Basic_Data.csv`,
	RunE: runDataImport,
}

var (
	checkMinCoverage float64
	importCapsPath   string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataCheckCmd)
	dataCmd.AddCommand(dataImportCmd)

	dataCheckCmd.Flags().Float64Var(&checkMinCoverage, "min-coverage", 0, "최소 가격 커버리지 (0~1)")
	dataImportCmd.Flags().StringVar(&importCapsPath, "caps", "", "시가총액 CSV (선택)")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ds, err := a.service.Dataset(ctx)
	if err != nil {
		return err
	}

	gateCfg := quality.DefaultConfig()
	gateCfg.MinPriceCoverage = checkMinCoverage
	snap, gateErr := quality.NewQualityGate(gateCfg, a.log).Check(ds.Panel, ds.Benchmark)

	PrintHeader("S0 Panel Quality")
	PrintKeyValue("Source", a.cfg.Panel.Source, 16)
	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", snap.Start.Format("2006-01-02"), snap.End.Format("2006-01-02")), 16)
	PrintKeyValue("Dates", fmt.Sprintf("%d", snap.Dates), 16)
	PrintKeyValue("Instruments", fmt.Sprintf("%d", snap.Instruments), 16)
	PrintKeyValue("Observations", fmt.Sprintf("%d", snap.Observations), 16)
	PrintKeyValue("Interior gaps", fmt.Sprintf("%d", snap.InteriorGaps), 16)
	PrintKeyValue("Invalid prices", fmt.Sprintf("%d", snap.InvalidPrices), 16)
	PrintKeyValue("Price coverage", fmt.Sprintf("%.2f%%", snap.PriceCoverage*100), 16)
	PrintKeyValue("MarketCap cover", fmt.Sprintf("%.2f%%", snap.MarketCapCoverage*100), 16)
	PrintKeyValue("Benchmark", fmt.Sprintf("%s (%d obs, %d missing)", ds.Benchmark.ID, ds.Benchmark.Len(), len(snap.BenchmarkMissing)), 16)
	PrintSeparator()

	if len(snap.BenchmarkMissing) > 0 {
		months := make([]string, 0, len(snap.BenchmarkMissing))
		for _, d := range snap.BenchmarkMissing {
			months = append(months, d.Format("2006-01"))
		}
		PrintWarning("Benchmark missing: " + strings.Join(months, ", "))
	}

	if gateErr != nil {
		PrintError("Quality gate failed")
		PrintList(snap.Issues)
		return gateErr
	}
	PrintSuccess("Quality gate passed")
	return nil
}

func runDataImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if panelPath == "" {
		return fmt.Errorf("--panel is required")
	}

	a, err := initApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ds, err := s0_data.NewCSVLoader(panelPath, importCapsPath, a.log).Load(ctx)
	if err != nil {
		return err
	}

	repo := s0_data.NewPriceRepository(a.db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	n, err := repo.SaveBatch(ctx, ds.Panel)
	if err != nil {
		return err
	}
	if err := repo.SaveBenchmark(ctx, ds.Benchmark); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Imported %d observations, %d benchmark prices (%s)", n, ds.Benchmark.Len(), ds.Benchmark.ID))
	return nil
}
