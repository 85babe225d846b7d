package brain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/momentum/internal/audit"
	"github.com/wonny/momentum/internal/backtest"
	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/internal/portfolio"
	"github.com/wonny/momentum/internal/s0_data/quality"
	"github.com/wonny/momentum/internal/s1_universe"
	"github.com/wonny/momentum/internal/s2_signals"
	"github.com/wonny/momentum/internal/selection"
	"github.com/wonny/momentum/internal/strategyconfig"
	"github.com/wonny/momentum/pkg/logger"
)

// Config is the explicit run configuration passed to every stage
type Config struct {
	StrategyID      string
	Horizons        []int
	Sizes           []int
	Skip            int
	Bounds          *strategyconfig.ScoreBounds
	Universe        s1_universe.Config
	Losers          bool
	DelistingPolicy string
	Significance    audit.SignificanceConfig
	CommonStart     bool
	Workers         int
	Quality         quality.Config
}

// ConfigFrom maps a validated strategy config. workers is the process
// default used when the strategy does not set one.
func ConfigFrom(cfg *strategyconfig.Config, workers int) Config {
	if cfg.Evaluation.Workers > 0 {
		workers = cfg.Evaluation.Workers
	}
	return Config{
		StrategyID:      cfg.Meta.StrategyID,
		Horizons:        append([]int(nil), cfg.Signals.Horizons...),
		Sizes:           append([]int(nil), cfg.Portfolio.Sizes...),
		Skip:            cfg.Signals.Skip,
		Bounds:          cfg.Signals.ScoreBounds,
		Universe:        s1_universe.ConfigFrom(cfg.Universe),
		Losers:          cfg.Portfolio.Losers,
		DelistingPolicy: cfg.Portfolio.DelistingPolicy,
		Significance:    audit.ConfigFrom(cfg.Significance),
		CommonStart:     cfg.Evaluation.CommonStart,
		Workers:         workers,
		Quality:         quality.DefaultConfig(),
	}
}

// Observer receives per-combination outcomes (metrics exporters)
type Observer interface {
	CombinationDone(horizon, size int, elapsed time.Duration, err error)
	DegradedRebalances(horizon, size int, leg string, count int)
}

// Comparator runs the full pipeline for every (horizon, size) combination
// ⭐ SSOT: 파이프라인 조율은 여기서만
//
// Combinations share only the read-only panel and the per-horizon score
// grids, so they run concurrently and in any order with identical results.
type Comparator struct {
	config   Config
	observer Observer
	logger   *logger.Logger
}

// NewComparator creates a new comparator
func NewComparator(config Config, log *logger.Logger) (*Comparator, error) {
	if len(config.Horizons) == 0 || len(config.Sizes) == 0 {
		return nil, fmt.Errorf("comparator needs at least one horizon and one size")
	}
	for _, h := range config.Horizons {
		if h < 1 {
			return nil, fmt.Errorf("invalid horizon %d", h)
		}
	}
	for _, n := range config.Sizes {
		if n < 1 {
			return nil, fmt.Errorf("invalid portfolio size %d", n)
		}
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	config.Horizons = sortedUnique(config.Horizons)
	config.Sizes = sortedUnique(config.Sizes)
	return &Comparator{config: config, logger: log}, nil
}

// WithObserver attaches an observer
func (c *Comparator) WithObserver(o Observer) *Comparator {
	c.observer = o
	return c
}

// window is the formation index range shared by a run
type window struct {
	first map[int]int // horizon → first formation index
	last  int         // last formation index (holding = last+1)
}

// Run executes every combination and assembles the comparison table.
// A failing combination is recorded in its cell; only quality gate,
// scoring, benchmark and context errors abort the run.
func (c *Comparator) Run(ctx context.Context, panel *contracts.PricePanel, benchmark *contracts.PriceSeries) (*ComparisonTable, error) {
	startTime := time.Now()

	c.logger.WithFields(map[string]interface{}{
		"strategy_id":  c.config.StrategyID,
		"horizons":     c.config.Horizons,
		"sizes":        c.config.Sizes,
		"losers":       c.config.Losers,
		"common_start": c.config.CommonStart,
		"workers":      c.config.Workers,
	}).Info("Starting horizon comparison")

	// === S0: 품질 검증 ===
	gate := quality.NewQualityGate(c.config.Quality, c.logger)
	if _, err := gate.Check(panel, benchmark); err != nil {
		return nil, fmt.Errorf("S0 quality: %w", err)
	}

	win, err := c.window(panel)
	if err != nil {
		return nil, err
	}

	// === S2: horizon 별 점수 (사이즈 간 공유, 읽기 전용) ===
	grids, err := c.scoreAll(ctx, panel)
	if err != nil {
		return nil, fmt.Errorf("S2 signals: %w", err)
	}

	engine, err := c.newEngine()
	if err != nil {
		return nil, err
	}
	benchReturns, err := engine.BenchmarkReturns(benchmark)
	if err != nil {
		return nil, fmt.Errorf("benchmark returns: %w", err)
	}

	table := &ComparisonTable{
		StrategyID:  c.config.StrategyID,
		PanelID:     panel.Fingerprint(),
		Horizons:    c.config.Horizons,
		Sizes:       c.config.Sizes,
		CommonStart: c.config.CommonStart,
		CreatedAt:   time.Now(),
	}

	// === S4~S7: 조합별 독립 실행 ===
	keys := make([]Key, 0, len(c.config.Horizons)*len(c.config.Sizes))
	for _, h := range c.config.Horizons {
		for _, n := range c.config.Sizes {
			keys = append(keys, Key{Horizon: h, Size: n})
		}
	}
	cells := make([]*Cell, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Workers)
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cells[i] = c.runCombination(panel, grids[key.Horizon], benchReturns, key, win)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("comparison aborted: %w", err)
	}
	table.Cells = cells

	// 평가 구간 = 공통 시작 ~ 마지막 보유일
	table.Start = panel.Date(win.evalFirst() + 1)
	table.End = panel.Date(win.last + 1)
	table.BenchmarkReturns = benchReturns.Window(table.Start, table.End)
	table.Benchmark = audit.NewAnalyzer(c.logger).Analyze(table.BenchmarkReturns)

	c.logger.WithFields(map[string]interface{}{
		"strategy_id":  c.config.StrategyID,
		"combinations": len(cells),
		"failed":       len(table.Failed()),
		"start":        table.Start.Format("2006-01-02"),
		"end":          table.End.Format("2006-01-02"),
		"duration":     time.Since(startTime).String(),
	}).Info("Horizon comparison completed")

	return table, nil
}

// window decides the formation index range of every horizon. With
// CommonStart every horizon starts at the latest first formation index so all
// series cover the same holding dates.
func (c *Comparator) window(panel *contracts.PricePanel) (*window, error) {
	maxH := c.config.Horizons[len(c.config.Horizons)-1]
	last := panel.NumDates() - 2
	if c.config.Skip+maxH > last {
		return nil, fmt.Errorf("panel has %d dates, horizon %d with skip %d needs at least %d",
			panel.NumDates(), maxH, c.config.Skip, c.config.Skip+maxH+2)
	}

	w := &window{first: make(map[int]int, len(c.config.Horizons)), last: last}
	for _, h := range c.config.Horizons {
		w.first[h] = c.config.Skip + h
		if c.config.CommonStart {
			w.first[h] = c.config.Skip + maxH
		}
	}

	if c.config.CommonStart && len(c.config.Horizons) > 1 {
		c.logger.WithFields(map[string]interface{}{
			"common_start": panel.Date(c.config.Skip + maxH + 1).Format("2006-01-02"),
			"max_horizon":  maxH,
			"dropped_for":  fmt.Sprintf("horizons < %d", maxH),
		}).Info("Aligning all horizons to a common start")
	}
	return w, nil
}

// evalFirst returns the earliest formation index across horizons
func (w *window) evalFirst() int {
	first := -1
	for _, f := range w.first {
		if first < 0 || f < first {
			first = f
		}
	}
	return first
}

// scorerWorkers splits the worker budget across horizons scored in
// parallel, so scoreAll never runs more than Workers scoring goroutines.
func (c *Comparator) scorerWorkers() int {
	return max(1, c.config.Workers/len(c.config.Horizons))
}

func (c *Comparator) scoreAll(ctx context.Context, panel *contracts.PricePanel) (map[int]*contracts.ScoreGrid, error) {
	grids := make([]*contracts.ScoreGrid, len(c.config.Horizons))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Workers)
	for i, h := range c.config.Horizons {
		g.Go(func() error {
			scorer, err := s2_signals.NewMomentumScorer(s2_signals.ScorerConfig{
				Horizon: h,
				Skip:    c.config.Skip,
				Bounds:  c.config.Bounds,
				Workers: c.scorerWorkers(),
			}, c.logger)
			if err != nil {
				return err
			}
			grid, err := scorer.ScoreAll(gctx, panel)
			if err != nil {
				return err
			}
			grids[i] = grid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int]*contracts.ScoreGrid, len(grids))
	for i, h := range c.config.Horizons {
		out[h] = grids[i]
	}
	return out, nil
}

func (c *Comparator) newEngine() (*backtest.Engine, error) {
	sim, err := backtest.NewSimulator(c.config.DelistingPolicy, c.logger)
	if err != nil {
		return nil, err
	}
	return backtest.NewEngine(sim, c.logger), nil
}

// runCombination is the pure per-combination pipeline S1 → S7. Every
// component is constructed here so nothing mutable is shared.
func (c *Comparator) runCombination(
	panel *contracts.PricePanel,
	grid *contracts.ScoreGrid,
	benchmark *contracts.ReturnSeries,
	key Key,
	win *window,
) *Cell {
	startTime := time.Now()
	cell := &Cell{Key: key}

	err := c.pipeline(cell, panel, grid, benchmark, win)
	if err != nil {
		cell.Err = err.Error()
		c.logger.WithFields(map[string]interface{}{
			"horizon":   key.Horizon,
			"size":      key.Size,
			"completed": cell.CompletedStages,
		}).WithError(err).Error("Combination failed")
	}
	cell.Duration = time.Since(startTime)

	if c.observer != nil {
		c.observer.CombinationDone(key.Horizon, key.Size, cell.Duration, err)
		for _, leg := range []*LegResult{cell.Winners, cell.Losers} {
			if leg != nil && leg.Schedule != nil {
				c.observer.DegradedRebalances(key.Horizon, key.Size, string(leg.Leg), leg.Schedule.DegradedCount())
			}
		}
	}
	return cell
}

func (c *Comparator) pipeline(
	cell *Cell,
	panel *contracts.PricePanel,
	grid *contracts.ScoreGrid,
	benchmark *contracts.ReturnSeries,
	win *window,
) error {
	key := cell.Key
	universe := s1_universe.NewBuilder(c.config.Universe, c.logger)
	ranker := selection.NewRanker(selection.Config{Size: key.Size, Losers: c.config.Losers}, c.logger)
	constructor := portfolio.NewConstructor(portfolio.DefaultConstraints(), c.logger)
	engine, err := c.newEngine()
	if err != nil {
		return err
	}
	analyzer := audit.NewAnalyzer(c.logger)
	tester, err := audit.NewSignificanceTester(c.config.Significance, c.logger)
	if err != nil {
		return err
	}

	// === S1 + S4: 유니버스 필터 후 랭킹 ===
	first := win.first[key.Horizon]
	selections := make([]*contracts.Selection, 0, win.last-first+1)
	for t := first; t <= win.last; t++ {
		set, err := universe.Apply(panel, grid.At(t))
		if err != nil {
			return fmt.Errorf("S1 universe: %w", err)
		}
		selections = append(selections, ranker.Rank(set))
	}
	cell.CompletedStages = append(cell.CompletedStages, contracts.StageUniverse, contracts.StageRanker)

	// === S5: 포트폴리오 ===
	legs := []contracts.Leg{contracts.LegWinners}
	if c.config.Losers {
		legs = append(legs, contracts.LegLosers)
	}
	schedules := make(map[contracts.Leg]*contracts.WeightSchedule, len(legs))
	for _, leg := range legs {
		schedule, err := constructor.BuildSchedule(panel, leg, key.Horizon, key.Size, selections)
		if err != nil {
			return fmt.Errorf("S5 portfolio: %w", err)
		}
		schedules[leg] = schedule
	}
	cell.CompletedStages = append(cell.CompletedStages, contracts.StagePortfolio)

	// === S6: 수익률 ===
	results := make(map[contracts.Leg]*backtest.Result, len(legs))
	for _, leg := range legs {
		res, err := engine.Run(panel, schedules[leg], seriesName(key, leg))
		if err != nil {
			return fmt.Errorf("S6 returns: %w", err)
		}
		results[leg] = res
	}
	var wml *contracts.ReturnSeries
	if c.config.Losers {
		wml, err = engine.WinnersMinusLosers(
			results[contracts.LegWinners].Series, results[contracts.LegLosers].Series,
			seriesName(key, contracts.LegWinnersMinus))
		if err != nil {
			return fmt.Errorf("S6 returns: %w", err)
		}
	}
	cell.CompletedStages = append(cell.CompletedStages, contracts.StageReturns)

	// === S7: 성과 + 유의성 (벤치마크와 동일 구간 필수) ===
	winners := results[contracts.LegWinners].Series
	bench := benchmark.Window(winners.Start(), winners.End())

	for _, leg := range legs {
		res := results[leg]
		report, _, err := analyzer.Compare(res.Series, bench)
		if err != nil {
			return fmt.Errorf("S7 metrics: %w", err)
		}
		sig, err := tester.TestAgainst(res.Series, bench, key.Horizon)
		if err != nil {
			return fmt.Errorf("S7 significance: %w", err)
		}
		relative, err := res.Series.Relative(bench)
		if err != nil {
			return fmt.Errorf("S7 relative: %w", err)
		}
		c.annotate(report, key, leg, schedules[leg].DegradedCount())
		report.Significance = sig

		lr := &LegResult{
			Leg:      leg,
			Schedule: schedules[leg],
			Returns:  res.Series,
			Periods:  res.Periods,
			Report:   report,
			Relative: relative,
		}
		if leg == contracts.LegWinners {
			cell.Winners = lr
		} else {
			cell.Losers = lr
		}
	}

	if wml != nil {
		report := analyzer.Analyze(wml)
		c.annotate(report, key, contracts.LegWinnersMinus,
			schedules[contracts.LegWinners].DegradedCount()+schedules[contracts.LegLosers].DegradedCount())
		// 롱숏은 0 대비 검정
		report.Significance = tester.Test(wml, key.Horizon)
		cell.WML = &LegResult{Leg: contracts.LegWinnersMinus, Returns: wml, Report: report}
	}
	cell.CompletedStages = append(cell.CompletedStages, contracts.StageAudit)

	return nil
}

func (c *Comparator) annotate(report *contracts.MetricsReport, key Key, leg contracts.Leg, degraded int) {
	report.Name = seriesName(key, leg)
	report.Horizon = key.Horizon
	report.Size = key.Size
	report.Leg = leg
	report.DegradedRebalances = degraded
}

func seriesName(key Key, leg contracts.Leg) string {
	return fmt.Sprintf("%s_%s", key, leg)
}

func sortedUnique(values []int) []int {
	out := append([]int(nil), values...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
