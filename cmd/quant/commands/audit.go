package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "S7 Audit - 저장된 실행 기록 조회",
	Long: `backtest run --save 로 저장한 실행 기록을 다룹니다.

명령어:
  latest   전략의 최근 실행 기록 출력
  prune    오래된 실행 기록 삭제`,
}

var (
	// latest 플래그
	auditStrategyID string

	// prune 플래그
	auditOlderThan time.Duration
)

var auditLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "최근 실행 기록 출력",
	Long: `전략 ID 의 가장 최근 실행 기록과 리포트를 출력합니다.

Example:
  go run ./cmd/quant audit latest
  go run ./cmd/quant audit latest --strategy-id momentum_monthly`,
	RunE: runAuditLatest,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "오래된 실행 기록 삭제",
	Long: `지정 기간보다 오래된 실행 기록을 삭제합니다 (리포트는 cascade).

Example:
  go run ./cmd/quant audit prune --older-than 2160h`,
	RunE: runAuditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditLatestCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditLatestCmd.Flags().StringVar(&auditStrategyID, "strategy-id", "", "전략 ID (기본: 현재 전략)")
	auditPruneCmd.Flags().DurationVar(&auditOlderThan, "older-than", 90*24*time.Hour, "보존 기간")
}

func runAuditLatest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	id := auditStrategyID
	if id == "" {
		id = a.strategy.Meta.StrategyID
	}

	run, err := audit.NewRepository(a.db.Pool).GetLatestRun(ctx, id)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Audit run #%d", run.ID))
	PrintKeyValue("Strategy", run.Snapshot.StrategyID, 12)
	PrintKeyValue("Config hash", shortHash(run.Snapshot.ConfigHash), 12)
	PrintKeyValue("Panel", shortHash(run.Snapshot.DataSnapshotID), 12)
	if run.Snapshot.GitCommit != "" {
		PrintKeyValue("Git", shortHash(run.Snapshot.GitCommit), 12)
	}
	PrintKeyValue("Created", run.Snapshot.CreatedAt.Format(time.RFC3339), 12)
	if run.Snapshot.ConfigHash != a.configHash {
		PrintWarning("Stored config differs from the current strategy")
	}
	PrintSeparator()
	fmt.Println()

	columns := []string{"Portfolio", "CAGR", "Vol", "Sharpe", "Sortino", "MDD", "p-HAC", "p-naive", "Degraded"}
	widths := []int{18, 9, 9, 7, 7, 9, 10, 10, 8}
	PrintTableHeader(columns, widths)
	// 벤치마크 행은 Significance 없음 → "-"
	for _, r := range run.Reports {
		PrintTableRow(reportRow(r), widths)
	}
	return nil
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cutoff := time.Now().Add(-auditOlderThan)
	n, err := audit.NewRepository(a.db.Pool).DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Deleted %d run(s) created before %s", n, cutoff.Format("2006-01-02")))
	return nil
}
