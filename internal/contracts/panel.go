package contracts

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"time"
)

// PricePanel is an immutable monthly price table: date × instrument.
// ⭐ SSOT: S0 → S2 가격 패널 전달. 생성 후 절대 변경 불가
//
// A missing observation (not yet listed, delisted, gap) is tracked by an
// explicit presence bit and is never represented as 0 or NaN.
type PricePanel struct {
	dates       []time.Time
	instruments []string
	index       map[string]int
	cells       [][]cell // [instrument][date]
}

type cell struct {
	price     float64
	marketCap float64
	present   bool
	hasCap    bool
}

// Quote is a single panel observation
type Quote struct {
	Price        float64 `json:"price"`
	MarketCap    float64 `json:"market_cap,omitempty"`
	HasMarketCap bool    `json:"has_market_cap"`
}

// Dates returns a copy of the panel dates in ascending order
func (p *PricePanel) Dates() []time.Time {
	out := make([]time.Time, len(p.dates))
	copy(out, p.dates)
	return out
}

// Date returns the date at position t
func (p *PricePanel) Date(t int) time.Time {
	return p.dates[t]
}

// NumDates returns the number of dates
func (p *PricePanel) NumDates() int {
	return len(p.dates)
}

// Instruments returns a copy of the instrument IDs in lexicographic order
func (p *PricePanel) Instruments() []string {
	out := make([]string, len(p.instruments))
	copy(out, p.instruments)
	return out
}

// NumInstruments returns the number of instruments
func (p *PricePanel) NumInstruments() int {
	return len(p.instruments)
}

// DateIndex returns the position of date d, or -1
func (p *PricePanel) DateIndex(d time.Time) int {
	d = NormalizeDate(d)
	i := sort.Search(len(p.dates), func(i int) bool { return !p.dates[i].Before(d) })
	if i < len(p.dates) && p.dates[i].Equal(d) {
		return i
	}
	return -1
}

// Quote returns the observation for instrument id at date position t.
// ok is false for a gap, an unknown instrument, or t out of range.
func (p *PricePanel) Quote(id string, t int) (Quote, bool) {
	i, found := p.index[id]
	if !found || t < 0 || t >= len(p.dates) {
		return Quote{}, false
	}
	c := p.cells[i][t]
	if !c.present {
		return Quote{}, false
	}
	return Quote{Price: c.price, MarketCap: c.marketCap, HasMarketCap: c.hasCap}, true
}

// Price returns the price for instrument id at date position t
func (p *PricePanel) Price(id string, t int) (float64, bool) {
	q, ok := p.Quote(id, t)
	return q.Price, ok
}

// MarketCap returns the market cap for instrument id at date position t
func (p *PricePanel) MarketCap(id string, t int) (float64, bool) {
	q, ok := p.Quote(id, t)
	if !ok || !q.HasMarketCap {
		return 0, false
	}
	return q.MarketCap, true
}

// Fingerprint returns a sha256 digest over the panel content
func (p *PricePanel) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	for _, d := range p.dates {
		binary.LittleEndian.PutUint64(buf[:], uint64(d.Unix()))
		h.Write(buf[:])
	}
	for i, id := range p.instruments {
		h.Write([]byte(id))
		for _, c := range p.cells[i] {
			if !c.present {
				h.Write([]byte{0})
				continue
			}
			h.Write([]byte{1})
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c.price))
			h.Write(buf[:])
			if c.hasCap {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c.marketCap))
				h.Write(buf[:])
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PanelBuilder accumulates observations and seals them into a PricePanel
type PanelBuilder struct {
	prices map[string]map[time.Time]float64
	caps   map[string]map[time.Time]float64
	static map[string]float64
	dates  map[time.Time]struct{}
	err    error
}

// NewPanelBuilder creates an empty builder
func NewPanelBuilder() *PanelBuilder {
	return &PanelBuilder{
		prices: make(map[string]map[time.Time]float64),
		caps:   make(map[string]map[time.Time]float64),
		static: make(map[string]float64),
		dates:  make(map[time.Time]struct{}),
	}
}

// AddDate registers a date even if no instrument has a price on it
func (b *PanelBuilder) AddDate(d time.Time) *PanelBuilder {
	b.dates[NormalizeDate(d)] = struct{}{}
	return b
}

// Set records the price of id at date d. Conflicting duplicates are an error
// reported by Build.
func (b *PanelBuilder) Set(id string, d time.Time, price float64) *PanelBuilder {
	if id == "" {
		b.fail(fmt.Errorf("empty instrument id at %s", d.Format("2006-01-02")))
		return b
	}
	d = NormalizeDate(d)
	b.dates[d] = struct{}{}
	m, ok := b.prices[id]
	if !ok {
		m = make(map[time.Time]float64)
		b.prices[id] = m
	}
	if prev, dup := m[d]; dup && !sameFloat(prev, price) {
		b.fail(fmt.Errorf("conflicting prices for %s at %s: %v vs %v", id, d.Format("2006-01-02"), prev, price))
		return b
	}
	m[d] = price
	return b
}

// SetMarketCap records the market cap of id at date d
func (b *PanelBuilder) SetMarketCap(id string, d time.Time, marketCap float64) *PanelBuilder {
	d = NormalizeDate(d)
	m, ok := b.caps[id]
	if !ok {
		m = make(map[time.Time]float64)
		b.caps[id] = m
	}
	m[d] = marketCap
	return b
}

// SetMarketCapAll records a time-invariant market cap of id, used at every
// date without a point-in-time cap
func (b *PanelBuilder) SetMarketCapAll(id string, marketCap float64) *PanelBuilder {
	b.static[id] = marketCap
	return b
}

func (b *PanelBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build seals the accumulated observations into an immutable panel.
// Market caps without a matching price are dropped.
func (b *PanelBuilder) Build() (*PricePanel, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.dates) == 0 {
		return nil, fmt.Errorf("empty panel: no dates")
	}

	dates := make([]time.Time, 0, len(b.dates))
	for d := range b.dates {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	pos := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		pos[d] = i
	}

	ids := make([]string, 0, len(b.prices))
	for id := range b.prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	panel := &PricePanel{
		dates:       dates,
		instruments: ids,
		index:       make(map[string]int, len(ids)),
		cells:       make([][]cell, len(ids)),
	}

	for i, id := range ids {
		panel.index[id] = i
		row := make([]cell, len(dates))
		for d, price := range b.prices[id] {
			row[pos[d]] = cell{price: price, present: true}
		}
		for d, mc := range b.caps[id] {
			t, ok := pos[d]
			if !ok || !row[t].present {
				continue
			}
			row[t].marketCap = mc
			row[t].hasCap = true
		}
		if mc, ok := b.static[id]; ok {
			for t := range row {
				if row[t].present && !row[t].hasCap {
					row[t].marketCap = mc
					row[t].hasCap = true
				}
			}
		}
		panel.cells[i] = row
	}

	return panel, nil
}

// PriceSeries is a single-instrument price series (the benchmark)
type PriceSeries struct {
	ID     string
	dates  []time.Time
	prices []float64
}

// NewPriceSeries builds a series; dates are normalised and sorted, duplicates
// are rejected.
func NewPriceSeries(id string, dates []time.Time, prices []float64) (*PriceSeries, error) {
	if len(dates) != len(prices) {
		return nil, fmt.Errorf("series %s: %d dates vs %d prices", id, len(dates), len(prices))
	}

	idx := make([]int, len(dates))
	for i := range idx {
		idx[i] = i
	}
	norm := make([]time.Time, len(dates))
	for i, d := range dates {
		norm[i] = NormalizeDate(d)
	}
	sort.Slice(idx, func(a, b int) bool { return norm[idx[a]].Before(norm[idx[b]]) })

	s := &PriceSeries{ID: id, dates: make([]time.Time, len(dates)), prices: make([]float64, len(dates))}
	for k, i := range idx {
		if k > 0 && norm[i].Equal(s.dates[k-1]) {
			return nil, fmt.Errorf("series %s: duplicate date %s", id, norm[i].Format("2006-01-02"))
		}
		s.dates[k] = norm[i]
		s.prices[k] = prices[i]
	}
	return s, nil
}

// Len returns the number of observations
func (s *PriceSeries) Len() int {
	return len(s.dates)
}

// Dates returns a copy of the series dates
func (s *PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// At returns the i-th observation
func (s *PriceSeries) At(i int) (time.Time, float64) {
	return s.dates[i], s.prices[i]
}

// Fingerprint returns a sha256 digest over the series ID, dates and prices
func (s *PriceSeries) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(s.ID))
	h.Write([]byte{0})
	var buf [8]byte
	for i, d := range s.dates {
		binary.LittleEndian.PutUint64(buf[:], uint64(d.Unix()))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s.prices[i]))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PriceOn returns the price on date d
func (s *PriceSeries) PriceOn(d time.Time) (float64, bool) {
	d = NormalizeDate(d)
	i := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(d) })
	if i < len(s.dates) && s.dates[i].Equal(d) {
		return s.prices[i], true
	}
	return 0, false
}

// NormalizeDate truncates d to a UTC calendar date
func NormalizeDate(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// ValidPrice reports whether p can be used as the denominator/numerator of a ratio
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
