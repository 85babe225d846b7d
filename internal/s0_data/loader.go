package s0_data

import (
	"context"
	"fmt"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/config"
	"github.com/wonny/momentum/pkg/database"
	"github.com/wonny/momentum/pkg/logger"
)

// Dataset is everything the backtest consumes: the instrument panel and the
// benchmark's own price series
type Dataset struct {
	Panel     *contracts.PricePanel
	Benchmark *contracts.PriceSeries
}

// Loader produces a clean dataset from an external source
type Loader interface {
	Load(ctx context.Context) (*Dataset, error)
}

// NewLoader picks the adapter configured by PANEL_SOURCE.
// db may be nil unless the source is postgres.
func NewLoader(cfg config.PanelConfig, db *database.DB, log *logger.Logger) (Loader, error) {
	switch cfg.Source {
	case config.PanelSourceCSV:
		return NewCSVLoader(cfg.Path, cfg.MarketCapPath, log), nil
	case config.PanelSourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("panel source postgres requires a database connection")
		}
		return NewPostgresLoader(NewPriceRepository(db.Pool), cfg.BenchmarkID, log), nil
	}
	return nil, fmt.Errorf("unknown panel source %q", cfg.Source)
}
