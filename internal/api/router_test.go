package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum/internal/api/handlers"
	"github.com/wonny/momentum/internal/brain"
	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/internal/s0_data"
	"github.com/wonny/momentum/internal/s0_data/quality"
	"github.com/wonny/momentum/pkg/logger"
	"github.com/wonny/momentum/pkg/metrics"
)

type fakeComparer struct {
	table     *brain.ComparisonTable
	err       error
	refreshed bool
}

func (f *fakeComparer) Compare(_ context.Context, refresh bool) (*brain.ComparisonTable, error) {
	f.refreshed = refresh
	return f.table, f.err
}

type fakeSource struct {
	ds *s0_data.Dataset
}

func (f *fakeSource) Dataset(context.Context) (*s0_data.Dataset, error) {
	if f.ds == nil {
		return nil, errors.New("no data")
	}
	return f.ds, nil
}

func cell(h, n int, sharpe contracts.Metric) *brain.Cell {
	return &brain.Cell{
		Key: brain.Key{Horizon: h, Size: n},
		Winners: &brain.LegResult{
			Leg:    contracts.LegWinners,
			Report: &contracts.MetricsReport{Name: brain.Key{Horizon: h, Size: n}.String(), Sharpe: sharpe},
		},
	}
}

func sampleTable() *brain.ComparisonTable {
	return &brain.ComparisonTable{
		StrategyID: "test",
		Horizons:   []int{3, 6},
		Sizes:      []int{10, 20},
		Cells: []*brain.Cell{
			cell(3, 10, contracts.Defined(0.5)),
			cell(3, 20, contracts.Defined(0.7)),
			cell(6, 10, contracts.Undefined("zero volatility")),
			{Key: brain.Key{Horizon: 6, Size: 20}, Err: "range mismatch"},
		},
	}
}

func newTestRouter(t *testing.T, comparer handlers.Comparer, source handlers.DatasetSource) (http.Handler, *metrics.Registry) {
	t.Helper()
	m := metrics.NewRegistry()
	log := logger.Nop()
	return NewRouter(
		handlers.NewComparisonHandler(comparer, log),
		handlers.NewDataHandler(source, quality.NewQualityGate(quality.DefaultConfig(), log), log),
		m,
		log,
	), m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{}, &fakeSource{})

	rec := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRouter_Comparison(t *testing.T) {
	comparer := &fakeComparer{table: sampleTable()}
	router, _ := newTestRouter(t, comparer, &fakeSource{})

	rec := get(t, router, "/api/comparison?refresh=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, comparer.refreshed)

	var table brain.ComparisonTable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	assert.Len(t, table.Cells, 4)
	// 정의되지 않은 지표는 null + reason
	assert.Contains(t, rec.Body.String(), `"reason":"zero volatility"`)
}

func TestRouter_Matrix(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{table: sampleTable()}, &fakeSource{})

	rec := get(t, router, "/api/comparison/matrix?metric=sharpe")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.MatrixResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int{3, 6}, resp.Horizons)
	require.Len(t, resp.Values, 2)
	assert.Equal(t, 0.5, resp.Values[0][0].Value)
	assert.Equal(t, 0.7, resp.Values[1][0].Value)
	assert.False(t, resp.Values[0][1].IsDefined())
	assert.Equal(t, "range mismatch", resp.Values[1][1].Reason)

	rec = get(t, router, "/api/comparison/matrix?metric=alpha")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_BestAndCell(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{table: sampleTable()}, &fakeSource{})

	rec := get(t, router, "/api/comparison/best")
	require.Equal(t, http.StatusOK, rec.Code)
	var best []handlers.BestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &best))
	require.Len(t, best, 1) // H6 는 정의된 Sharpe 없음
	assert.Equal(t, 20, best[0].Size)

	rec = get(t, router, "/api/comparison/3/20")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"H3_N20"`)

	rec = get(t, router, "/api/comparison/12/10")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ComparisonError(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{err: errors.New("boom")}, &fakeSource{})

	rec := get(t, router, "/api/comparison")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to run comparison")
}

func TestRouter_DataQuality(t *testing.T) {
	d0 := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	d1 := time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)
	panel, err := contracts.NewPanelBuilder().Set("A", d0, 10).Set("A", d1, 11).Build()
	require.NoError(t, err)
	bench, err := contracts.NewPriceSeries("B", []time.Time{d0, d1}, []float64{1, 2})
	require.NoError(t, err)

	router, _ := newTestRouter(t, &fakeComparer{}, &fakeSource{ds: &s0_data.Dataset{Panel: panel, Benchmark: bench}})
	rec := get(t, router, "/api/data/quality")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.QualityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Snapshot)
	assert.True(t, resp.Snapshot.Passed)
	assert.Equal(t, 2, resp.Snapshot.Observations)

	router, _ = newTestRouter(t, &fakeComparer{}, &fakeSource{})
	rec = get(t, router, "/api/data/quality")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{table: sampleTable()}, &fakeSource{})

	get(t, router, "/api/comparison/3/10")
	rec := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `route="/api/comparison/{horizon:[0-9]+}/{size:[0-9]+}"`), body)
}
