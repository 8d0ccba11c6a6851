package handlers

import (
	"net/http"

	"tutorchat/pkg/models"
	"tutorchat/pkg/utils"
)

// listModels returns the configured model catalogue.
func (h *Handlers) listModels(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Models models.Catalog `json:"models"`
	}{Models: h.engine.Catalog()})
}
