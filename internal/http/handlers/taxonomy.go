package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medforge/medforge-backend/internal/modules/taxonomy"
)

type TaxonomyHandler struct {
	catalog *taxonomy.Catalog
}

func NewTaxonomyHandler(catalog *taxonomy.Catalog) *TaxonomyHandler {
	return &TaxonomyHandler{catalog: catalog}
}

// GET /api/taxonomy
func (h *TaxonomyHandler) List(c *gin.Context) {
	entries, err := h.catalog.ListSpecialtiesWithTopics(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "taxonomy_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"specialties": entries})
}
