package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/middleware"
	"unifield-backend/internal/models"
	"unifield-backend/pkg/utils"
)

// ActionLogStore keeps the audit trail. *repositories.ActionLogRepository
// implements it.
type ActionLogStore interface {
	Create(ctx context.Context, entry *models.ActionLog) error
	List(ctx context.Context, table string, limit int) ([]models.ActionLog, error)
}

// TableHandler exposes a gateway over HTTP for gateway.Client.
type TableHandler struct {
	Gateway gateway.Gateway
	// Audit is optional; without it mutations are not recorded.
	Audit ActionLogStore
}

func NewTableHandler(gw gateway.Gateway, audit ActionLogStore) *TableHandler {
	return &TableHandler{Gateway: gw, Audit: audit}
}

// List handles GET /api/tables/{table}
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := gateway.DecodeQuery(r.URL.Query())
	if err != nil {
		utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, err.Error())
		return
	}

	res, err := h.Gateway.Select(r.Context(), mux.Vars(r)["table"], q)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	if res.Rows == nil {
		res.Rows = []models.Row{}
	}
	utils.JSON(w, http.StatusOK, res)
}

// Create handles POST /api/tables/{table}
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	row, ok := decodeRow(w, r)
	if !ok {
		return
	}
	table := mux.Vars(r)["table"]
	out, err := h.Gateway.Insert(r.Context(), table, row)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	id, _ := out.ID()
	h.record(r, models.ActionCreate, table, id, row)
	utils.JSON(w, http.StatusCreated, out)
}

// Update handles PATCH /api/tables/{table}/{id}
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(w, r)
	if !ok {
		return
	}
	row, ok := decodeRow(w, r)
	if !ok {
		return
	}
	table := mux.Vars(r)["table"]
	out, err := h.Gateway.Update(r.Context(), table, row, id)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	h.record(r, models.ActionUpdate, table, id, row)
	utils.JSON(w, http.StatusOK, out)
}

// Delete handles DELETE /api/tables/{table}/{id}
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(w, r)
	if !ok {
		return
	}
	table := mux.Vars(r)["table"]
	if err := h.Gateway.Delete(r.Context(), table, id); err != nil {
		writeGatewayError(w, err)
		return
	}
	h.record(r, models.ActionDelete, table, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// ActionLogs handles GET /api/admin/action-logs?table=T&limit=N
func (h *TableHandler) ActionLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	if h.Audit == nil {
		utils.JSON(w, http.StatusOK, []models.ActionLog{})
		return
	}

	logs, err := h.Audit.List(r.Context(), r.URL.Query().Get("table"), limit)
	if err != nil {
		log.Printf("[Audit] failed to list action logs: %v", err)
		utils.Error(w, http.StatusInternalServerError, gateway.ErrorTypeInternal, "Failed to list action logs")
		return
	}
	if logs == nil {
		logs = []models.ActionLog{}
	}
	utils.JSON(w, http.StatusOK, logs)
}

// record appends to the audit trail. A failure is logged and does not undo
// the mutation.
func (h *TableHandler) record(r *http.Request, action, table string, id int64, changes models.Row) {
	if h.Audit == nil {
		return
	}
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return
	}
	entry := &models.ActionLog{
		UserID:    userID,
		Action:    action,
		TableName: table,
		RowID:     id,
		Changes:   changes,
		IPAddress: middleware.ClientIP(r),
	}
	if err := h.Audit.Create(r.Context(), entry); err != nil {
		log.Printf("[Audit] failed to record %s on %s/%d: %v", action, table, id, err)
	}
}

func rowID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, "Invalid row id")
		return 0, false
	}
	return id, true
}

func decodeRow(w http.ResponseWriter, r *http.Request) (models.Row, bool) {
	var row models.Row
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&row); err != nil {
		utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, "Invalid request body")
		return nil, false
	}
	if row == nil {
		utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, "Request body must be a JSON object")
		return nil, false
	}
	return row, true
}
