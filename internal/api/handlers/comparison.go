package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/momentum/internal/brain"
	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

// Comparer produces comparison tables (brain.Service)
type Comparer interface {
	Compare(ctx context.Context, refresh bool) (*brain.ComparisonTable, error)
}

// ComparisonHandler serves the horizon × size comparison
// ⭐ SSOT: 비교 결과 API 핸들러는 이 구조체에서만
type ComparisonHandler struct {
	comparer Comparer
	logger   *logger.Logger
}

// NewComparisonHandler creates a new comparison handler
func NewComparisonHandler(comparer Comparer, log *logger.Logger) *ComparisonHandler {
	return &ComparisonHandler{
		comparer: comparer,
		logger:   log,
	}
}

// MatrixResponse is one metric laid out as rows = sizes, columns = horizons
type MatrixResponse struct {
	Metric   string               `json:"metric"`
	Horizons []int                `json:"horizons"`
	Sizes    []int                `json:"sizes"`
	Values   [][]contracts.Metric `json:"values"`
}

// BestResponse is the best size per horizon by winners Sharpe
type BestResponse struct {
	Horizon int              `json:"horizon"`
	Size    int              `json:"size"`
	Sharpe  contracts.Metric `json:"sharpe"`
}

// GetComparison returns the full table
// GET /api/comparison?refresh=true
func (h *ComparisonHandler) GetComparison(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, table)
}

// GetMatrix returns one metric across the grid
// GET /api/comparison/matrix?metric=sharpe
func (h *ComparisonHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = brain.MetricSharpe
	}

	table, ok := h.table(w, r)
	if !ok {
		return
	}
	values, err := table.Matrix(metric)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, MatrixResponse{
		Metric:   metric,
		Horizons: table.Horizons,
		Sizes:    table.Sizes,
		Values:   values,
	})
}

// GetBest returns the best size per horizon
// GET /api/comparison/best
func (h *ComparisonHandler) GetBest(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}

	best := table.BestByHorizon()
	out := make([]BestResponse, 0, len(best))
	for _, hz := range table.Horizons {
		key, found := best[hz]
		if !found {
			continue
		}
		cell, _ := table.Get(key.Horizon, key.Size)
		out = append(out, BestResponse{Horizon: key.Horizon, Size: key.Size, Sharpe: cell.Winners.Report.Sharpe})
	}
	respondJSON(w, http.StatusOK, out)
}

// GetCell returns one combination
// GET /api/comparison/{horizon}/{size}
func (h *ComparisonHandler) GetCell(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	horizon, err1 := strconv.Atoi(vars["horizon"])
	size, err2 := strconv.Atoi(vars["size"])
	if err1 != nil || err2 != nil {
		respondError(w, http.StatusBadRequest, "horizon and size must be integers")
		return
	}

	table, ok := h.table(w, r)
	if !ok {
		return
	}
	cell, found := table.Get(horizon, size)
	if !found {
		respondError(w, http.StatusNotFound, "combination not computed")
		return
	}
	respondJSON(w, http.StatusOK, cell)
}

func (h *ComparisonHandler) table(w http.ResponseWriter, r *http.Request) (*brain.ComparisonTable, bool) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	table, err := h.comparer.Compare(r.Context(), refresh)
	if err != nil {
		h.logger.WithError(err).Error("Failed to run comparison")
		respondError(w, http.StatusInternalServerError, "Failed to run comparison")
		return nil, false
	}
	return table, true
}
