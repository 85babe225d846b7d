package s0_data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

// Separator of the monthly levels and market cap exports
const Separator = ';'

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02.01.2006",
	"1/2/2006",
	"2006/01/02",
}

// 숫자, 소수점, 부호, 지수 외 문자는 제거 ("1,234,567" → "1234567")
var nonNumeric = regexp.MustCompile(`[^\d.\-eE]`)

// CSVLoader reads the wide monthly levels file (date;benchmark;id1;id2;...)
// and an optional market cap file.
type CSVLoader struct {
	levelsPath    string
	marketCapPath string
	logger        *logger.Logger
}

// NewCSVLoader creates a new CSV loader. marketCapPath may be empty.
func NewCSVLoader(levelsPath, marketCapPath string, log *logger.Logger) *CSVLoader {
	return &CSVLoader{
		levelsPath:    levelsPath,
		marketCapPath: marketCapPath,
		logger:        log,
	}
}

// Load reads both files and returns the sealed dataset
func (l *CSVLoader) Load(ctx context.Context) (*Dataset, error) {
	levels, err := os.Open(l.levelsPath)
	if err != nil {
		return nil, fmt.Errorf("open levels: %w", err)
	}
	defer levels.Close()

	var caps io.Reader
	if l.marketCapPath != "" {
		f, err := os.Open(l.marketCapPath)
		if err != nil {
			return nil, fmt.Errorf("open market caps: %w", err)
		}
		defer f.Close()
		caps = f
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := l.Read(levels, caps)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.levelsPath, err)
	}
	return ds, nil
}

// Read parses levels and, when caps is non-nil, market caps.
// Empty or unparseable cells are gaps, never zero.
func (l *CSVLoader) Read(levels, caps io.Reader) (*Dataset, error) {
	r := newReader(levels)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 3 {
		return nil, fmt.Errorf("header needs date, benchmark and at least one instrument, got %d columns", len(header))
	}
	benchmarkID := strings.TrimSpace(header[1])
	ids := make([]string, len(header)-2)
	for i, h := range header[2:] {
		ids[i] = strings.TrimSpace(h)
		if ids[i] == "" {
			return nil, fmt.Errorf("empty instrument id in column %d", i+3)
		}
	}

	builder := contracts.NewPanelBuilder()
	var benchDates []time.Time
	var benchPrices []float64
	rows, gaps, skipped := 0, 0, 0

	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := parseDate(rec[0])
		if err != nil {
			// 날짜 없는 행은 버림
			skipped++
			continue
		}
		rows++
		builder.AddDate(date)

		if v, ok := parseNumber(field(rec, 1)); ok {
			benchDates = append(benchDates, date)
			benchPrices = append(benchPrices, v)
		}
		for i, id := range ids {
			v, ok := parseNumber(field(rec, i+2))
			if !ok {
				gaps++
				continue
			}
			builder.Set(id, date, v)
		}
	}
	if rows == 0 {
		return nil, fmt.Errorf("no dated rows")
	}

	capCount := 0
	if caps != nil {
		capCount, err = readMarketCaps(caps, builder, ids)
		if err != nil {
			return nil, fmt.Errorf("market caps: %w", err)
		}
	}

	panel, err := builder.Build()
	if err != nil {
		return nil, err
	}
	benchmark, err := contracts.NewPriceSeries(benchmarkID, benchDates, benchPrices)
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(map[string]interface{}{
		"dates":        panel.NumDates(),
		"instruments":  panel.NumInstruments(),
		"benchmark":    benchmarkID,
		"bench_obs":    benchmark.Len(),
		"gaps":         gaps,
		"skipped_rows": skipped,
		"market_caps":  capCount,
	}).Info("Panel loaded from CSV")

	return &Dataset{Panel: panel, Benchmark: benchmark}, nil
}

// readMarketCaps applies the cap file. With a date column caps are point in
// time; without one each instrument's cap is applied to every panel date.
func readMarketCaps(in io.Reader, builder *contracts.PanelBuilder, ids []string) (int, error) {
	r := newReader(in)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	idCol := findColumn(header, "nr", "id", "instrument", "code")
	capCol := findColumn(header, "company market capitalization", "market_cap", "marketcap", "market cap")
	dateCol := findColumn(header, "date")
	if idCol < 0 || capCol < 0 {
		return 0, fmt.Errorf("need id and market cap columns, got %v", header)
	}

	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	static := make(map[string]float64)
	count := 0

	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		id := strings.TrimSpace(field(rec, idCol))
		mc, ok := parseNumber(field(rec, capCol))
		if !ok || !known[id] {
			continue
		}
		if dateCol < 0 {
			static[id] = mc
			continue
		}
		d, err := parseDate(field(rec, dateCol))
		if err != nil {
			continue
		}
		builder.SetMarketCap(id, d, mc)
		count++
	}

	if len(static) > 0 {
		for id, mc := range static {
			builder.SetMarketCapAll(id, mc)
		}
		count += len(static)
	}
	return count, nil
}

func newReader(in io.Reader) *csv.Reader {
	r := csv.NewReader(in)
	r.Comma = Separator
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

func findColumn(header []string, names ...string) int {
	for _, name := range names {
		for i, h := range header {
			// BOM 포함 헤더 대비
			h = strings.TrimPrefix(h, "\ufeff")
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return contracts.NormalizeDate(d), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseNumber(s string) (float64, bool) {
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
