package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	types "github.com/medforge/medforge-backend/internal/domain"
)

type SweepsHandler struct {
	runs    sweeps.SweepRunRepo
	results sweeps.SweepResultRepo
}

func NewSweepsHandler(runs sweeps.SweepRunRepo, results sweeps.SweepResultRepo) *SweepsHandler {
	return &SweepsHandler{runs: runs, results: results}
}

type createSweepRequest struct {
	Name          string      `json:"name"`
	VariationIDs  []uuid.UUID `json:"variation_ids"`
	Specialty     string      `json:"specialty"`
	Topic         string      `json:"topic"`
	CreatedFrom   *time.Time  `json:"created_from"`
	CreatedTo     *time.Time  `json:"created_to"`
	MaxConfidence *float64    `json:"max_confidence"`
	OnlyUnscored  bool        `json:"only_unscored"`
	BatchSize     int         `json:"batch_size"`
	Concurrency   int         `json:"concurrency"`
	EvalModel     string      `json:"eval_model"`
	FixModel      string      `json:"fix_model"`
}

// POST /api/sweeps
func (h *SweepsHandler) Create(c *gin.Context) {
	var req createSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	run := &types.SweepRun{
		Name:          req.Name,
		Specialty:     req.Specialty,
		Topic:         req.Topic,
		CreatedFrom:   req.CreatedFrom,
		CreatedTo:     req.CreatedTo,
		MaxConfidence: req.MaxConfidence,
		OnlyUnscored:  req.OnlyUnscored,
		BatchSize:     req.BatchSize,
		Concurrency:   req.Concurrency,
		EvalModel:     req.EvalModel,
		FixModel:      req.FixModel,
		Status:        types.SweepRunPending,
	}
	if run.Name == "" {
		run.Name = "sweep-" + time.Now().UTC().Format("20060102-150405")
	}
	if len(req.VariationIDs) > 0 {
		raw, err := json.Marshal(req.VariationIDs)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_variation_ids", err)
			return
		}
		run.VariationIDs = datatypes.JSON(raw)
	}

	if err := h.runs.Create(c.Request.Context(), nil, run); err != nil {
		RespondError(c, http.StatusInternalServerError, "sweep_create_failed", err)
		return
	}

	RespondCreated(c, gin.H{"run": run})
}

// GET /api/sweeps
func (h *SweepsHandler) List(c *gin.Context) {
	limit := 50
	runs, err := h.runs.List(c.Request.Context(), nil, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "sweep_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"runs": runs})
}

// GET /api/sweeps/:id
func (h *SweepsHandler) Get(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	run, err := h.runs.GetByID(c.Request.Context(), nil, runID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "sweep_lookup_failed", err)
		return
	}
	if run == nil {
		RespondError(c, http.StatusNotFound, "sweep_not_found", errors.New("sweep run not found"))
		return
	}
	RespondOK(c, gin.H{"run": run})
}

// GET /api/sweeps/:id/results
func (h *SweepsHandler) Results(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	results, err := h.results.ListByRun(c.Request.Context(), nil, runID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "result_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"results": results})
}

// POST /api/sweeps/:id/cancel
func (h *SweepsHandler) Cancel(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	if err := h.runs.Cancel(c.Request.Context(), nil, runID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusConflict, "sweep_not_cancellable", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "sweep_cancel_failed", err)
		return
	}
	RespondOK(c, gin.H{"cancelled": true})
}
