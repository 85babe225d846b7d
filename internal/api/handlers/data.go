package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/momentum/internal/s0_data"
	"github.com/wonny/momentum/internal/s0_data/quality"
	"github.com/wonny/momentum/pkg/logger"
)

// DatasetSource loads the current panel (brain.Service)
type DatasetSource interface {
	Dataset(ctx context.Context) (*s0_data.Dataset, error)
}

// DataHandler handles data-related API endpoints
// ⭐ SSOT: 데이터 API 핸들러는 이 구조체에서만
type DataHandler struct {
	source      DatasetSource
	qualityGate *quality.QualityGate
	logger      *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(source DatasetSource, qualityGate *quality.QualityGate, log *logger.Logger) *DataHandler {
	return &DataHandler{
		source:      source,
		qualityGate: qualityGate,
		logger:      log,
	}
}

// QualityResponse wraps the quality snapshot of the loaded panel
type QualityResponse struct {
	Snapshot *quality.Snapshot `json:"snapshot"`
	Error    string            `json:"error,omitempty"`
}

// GetQuality checks the currently configured panel
// GET /api/data/quality
func (h *DataHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	ds, err := h.source.Dataset(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load dataset")
		respondError(w, http.StatusInternalServerError, "Failed to load dataset")
		return
	}

	snapshot, err := h.qualityGate.Check(ds.Panel, ds.Benchmark)
	resp := QualityResponse{Snapshot: snapshot}
	if err != nil {
		// 게이트 실패도 스냅샷은 반환
		resp.Error = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}
