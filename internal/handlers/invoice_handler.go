package handlers

import (
	"fmt"
	"log"
	"net/http"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/reports"
	"unifield-backend/pkg/utils"
)

type InvoiceHandler struct {
	Service *reports.InvoiceService
}

func NewInvoiceHandler(s *reports.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{Service: s}
}

// DownloadPDF handles GET /api/invoices/{id}/pdf
func (h *InvoiceHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(w, r)
	if !ok {
		return
	}

	data, err := h.Service.Load(r.Context(), id)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	pdf, err := h.Service.GeneratePDF(data)
	if err != nil {
		log.Printf("[Reports] invoice %d pdf failed: %v", id, err)
		utils.Error(w, http.StatusInternalServerError, gateway.ErrorTypeInternal, "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice_%d.pdf", id))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
