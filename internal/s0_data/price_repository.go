package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

// Schema creates the monthly price tables. Applied by EnsureSchema.
const Schema = `
CREATE SCHEMA IF NOT EXISTS data;

CREATE TABLE IF NOT EXISTS data.monthly_prices (
	instrument_id TEXT             NOT NULL,
	price_date    DATE             NOT NULL,
	close_price   DOUBLE PRECISION NOT NULL,
	market_cap    DOUBLE PRECISION,
	PRIMARY KEY (instrument_id, price_date)
);

CREATE TABLE IF NOT EXISTS data.benchmark_prices (
	benchmark_id TEXT             NOT NULL,
	price_date   DATE             NOT NULL,
	close_price  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (benchmark_id, price_date)
);
`

// PriceRepository reads and writes monthly price levels
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// EnsureSchema creates the price tables if missing
func (r *PriceRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create price schema: %w", err)
	}
	return nil
}

// LoadPanel reads every observation between from and to (inclusive).
// Zero times leave that side unbounded.
func (r *PriceRepository) LoadPanel(ctx context.Context, from, to time.Time) (*contracts.PricePanel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT instrument_id, price_date, close_price, market_cap
		FROM data.monthly_prices
		WHERE ($1::date IS NULL OR price_date >= $1)
		  AND ($2::date IS NULL OR price_date <= $2)
		ORDER BY price_date, instrument_id
	`, nullDate(from), nullDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	builder := contracts.NewPanelBuilder()
	for rows.Next() {
		var (
			id    string
			date  time.Time
			price float64
			mc    *float64
		)
		if err := rows.Scan(&id, &date, &price, &mc); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		builder.Set(id, date, price)
		if mc != nil {
			builder.SetMarketCap(id, date, *mc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prices: %w", err)
	}

	return builder.Build()
}

// LoadBenchmark reads the benchmark's own price series
func (r *PriceRepository) LoadBenchmark(ctx context.Context, benchmarkID string, from, to time.Time) (*contracts.PriceSeries, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT price_date, close_price
		FROM data.benchmark_prices
		WHERE benchmark_id = $1
		  AND ($2::date IS NULL OR price_date >= $2)
		  AND ($3::date IS NULL OR price_date <= $3)
		ORDER BY price_date
	`, benchmarkID, nullDate(from), nullDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmark: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	var prices []float64
	for rows.Next() {
		var d time.Time
		var p float64
		if err := rows.Scan(&d, &p); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark: %w", err)
		}
		dates = append(dates, d)
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read benchmark: %w", err)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("benchmark %s has no prices", benchmarkID)
	}

	return contracts.NewPriceSeries(benchmarkID, dates, prices)
}

// SaveBatch upserts every present observation of a panel
func (r *PriceRepository) SaveBatch(ctx context.Context, panel *contracts.PricePanel) (int, error) {
	batch := &pgx.Batch{}
	for _, id := range panel.Instruments() {
		for t := 0; t < panel.NumDates(); t++ {
			q, ok := panel.Quote(id, t)
			if !ok {
				continue
			}
			var mc *float64
			if q.HasMarketCap {
				v := q.MarketCap
				mc = &v
			}
			batch.Queue(`
				INSERT INTO data.monthly_prices (instrument_id, price_date, close_price, market_cap)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (instrument_id, price_date) DO UPDATE SET
					close_price = EXCLUDED.close_price,
					market_cap = EXCLUDED.market_cap
			`, id, panel.Date(t), q.Price, mc)
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to save prices: %w", err)
	}
	return batch.Len(), nil
}

// SaveBenchmark upserts a benchmark series
func (r *PriceRepository) SaveBenchmark(ctx context.Context, series *contracts.PriceSeries) error {
	batch := &pgx.Batch{}
	for i := 0; i < series.Len(); i++ {
		d, p := series.At(i)
		batch.Queue(`
			INSERT INTO data.benchmark_prices (benchmark_id, price_date, close_price)
			VALUES ($1, $2, $3)
			ON CONFLICT (benchmark_id, price_date) DO UPDATE SET
				close_price = EXCLUDED.close_price
		`, series.ID, d, p)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save benchmark %s: %w", series.ID, err)
	}
	return nil
}

func nullDate(d time.Time) *time.Time {
	if d.IsZero() {
		return nil
	}
	return &d
}

// PostgresLoader loads the full panel and benchmark from the price tables
type PostgresLoader struct {
	repo        *PriceRepository
	benchmarkID string
	logger      *logger.Logger
}

// NewPostgresLoader creates a new postgres loader
func NewPostgresLoader(repo *PriceRepository, benchmarkID string, log *logger.Logger) *PostgresLoader {
	return &PostgresLoader{repo: repo, benchmarkID: benchmarkID, logger: log}
}

// Load reads the whole stored history
func (l *PostgresLoader) Load(ctx context.Context) (*Dataset, error) {
	panel, err := l.repo.LoadPanel(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	benchmark, err := l.repo.LoadBenchmark(ctx, l.benchmarkID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(map[string]interface{}{
		"dates":       panel.NumDates(),
		"instruments": panel.NumInstruments(),
		"benchmark":   l.benchmarkID,
		"bench_obs":   benchmark.Len(),
	}).Info("Panel loaded from postgres")

	return &Dataset{Panel: panel, Benchmark: benchmark}, nil
}
