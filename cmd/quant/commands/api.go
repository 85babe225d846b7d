package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/momentum/internal/api"
	"github.com/wonny/momentum/internal/api/handlers"
	"github.com/wonny/momentum/internal/s0_data/quality"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `읽기 전용 REST API 서버를 시작합니다.

Endpoints:
  GET  /health                            - Health check
  GET  /metrics                           - Prometheus metrics
  GET  /api/comparison[?refresh=true]     - 전체 비교 테이블
  GET  /api/comparison/matrix?metric=...  - 지표 행렬 (크기 × horizon)
  GET  /api/comparison/best               - horizon 별 최적 크기
  GET  /api/comparison/{horizon}/{size}   - 단일 조합
  GET  /api/data/quality                  - 패널 품질

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := initApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	comparisonHandler := handlers.NewComparisonHandler(a.service, a.log)
	dataHandler := handlers.NewDataHandler(a.service, quality.NewQualityGate(quality.DefaultConfig(), a.log), a.log)
	router := api.NewRouter(comparisonHandler, dataHandler, a.metrics, a.log)
	server := api.New(a.cfg, a.log, router)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}
	a.log.Info("Server stopped")
	return nil
}
