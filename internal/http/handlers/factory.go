package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medforge/medforge-backend/internal/data/repos/content"
	"github.com/medforge/medforge-backend/internal/data/repos/ingest"
	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/modules/factory"
)

type FactoryHandler struct {
	orchestrator    *factory.Orchestrator
	jobs            ingest.JobRepo
	items           content.BaseItemRepo
	classifications content.ClassificationRepo
	variations      content.VariationRepo
}

func NewFactoryHandler(
	orchestrator *factory.Orchestrator,
	jobs ingest.JobRepo,
	items content.BaseItemRepo,
	classifications content.ClassificationRepo,
	variations content.VariationRepo,
) *FactoryHandler {
	return &FactoryHandler{
		orchestrator:    orchestrator,
		jobs:            jobs,
		items:           items,
		classifications: classifications,
		variations:      variations,
	}
}

type ingestBatchRequest struct {
	Texts       []string `json:"texts" binding:"required"`
	Label       string   `json:"label"`
	SubmittedBy string   `json:"submitted_by"`
}

// POST /api/ingest
func (h *FactoryHandler) IngestBatch(c *gin.Context) {
	var req ingestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	jobID, err := h.orchestrator.IngestBatchAsync(c.Request.Context(), req.Texts, req.Label, req.SubmittedBy)
	if err != nil {
		if errors.Is(err, factory.ErrEmptyBatch) {
			RespondError(c, http.StatusBadRequest, "empty_batch", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "ingest_failed", err)
		return
	}

	RespondCreated(c, gin.H{"job_id": jobID})
}

// GET /api/ingest/:id
func (h *FactoryHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), nil, jobID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "job_lookup_failed", err)
		return
	}
	if job == nil {
		RespondError(c, http.StatusNotFound, "job_not_found", errors.New("ingest job not found"))
		return
	}

	RespondOK(c, gin.H{"job": job})
}

// GET /api/items/:id
func (h *FactoryHandler) GetItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_item_id", err)
		return
	}
	item, err := h.items.GetByID(c.Request.Context(), nil, itemID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "item_lookup_failed", err)
		return
	}
	if item == nil {
		RespondError(c, http.StatusNotFound, "item_not_found", errors.New("base item not found"))
		return
	}

	classification, err := h.classifications.GetByBaseItemID(c.Request.Context(), nil, item.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "classification_lookup_failed", err)
		return
	}
	variations, err := h.variations.ListByBaseItem(c.Request.Context(), nil, item.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "variation_lookup_failed", err)
		return
	}

	RespondOK(c, gin.H{
		"item":           item,
		"classification": classification,
		"variations":     variations,
	})
}

// POST /api/items/:id/analyze
func (h *FactoryHandler) AnalyzeItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_item_id", err)
		return
	}
	item, err := h.items.GetByID(c.Request.Context(), nil, itemID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "item_lookup_failed", err)
		return
	}
	if item == nil {
		RespondError(c, http.StatusNotFound, "item_not_found", errors.New("base item not found"))
		return
	}
	if item.Status != types.BaseItemPending {
		RespondError(c, http.StatusConflict, "item_not_pending",
			fmt.Errorf("item is %s, only PENDING items can be analyzed", item.Status))
		return
	}

	if err := h.orchestrator.Analyze(c.Request.Context(), item); err != nil {
		RespondError(c, http.StatusInternalServerError, "analyze_failed", err)
		return
	}
	updated, err := h.items.GetByID(c.Request.Context(), nil, itemID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "item_lookup_failed", err)
		return
	}

	RespondOK(c, gin.H{"item": updated})
}
