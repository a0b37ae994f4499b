package handlers

import (
	"log"
	"net/http"

	"unifield-backend/internal/backup"
	"unifield-backend/internal/gateway"
	"unifield-backend/pkg/utils"
)

// BackupHandler serves the admin snapshot endpoints. Service is nil when no
// bucket is configured.
type BackupHandler struct {
	Service *backup.Service
}

func NewBackupHandler(s *backup.Service) *BackupHandler {
	return &BackupHandler{Service: s}
}

// Create handles POST /api/admin/backup
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		utils.Error(w, http.StatusServiceUnavailable, gateway.ErrorTypeInternal, "Backup storage not configured")
		return
	}
	snap, err := h.Service.Run(r.Context())
	if err != nil {
		log.Printf("[Backup] snapshot failed: %v", err)
		utils.Error(w, http.StatusInternalServerError, gateway.ErrorTypeInternal, "Backup failed")
		return
	}
	utils.JSON(w, http.StatusCreated, snap)
}

// List handles GET /api/admin/backup
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		utils.JSON(w, http.StatusOK, map[string]interface{}{"configured": false, "snapshots": []string{}})
		return
	}
	keys, err := h.Service.List(r.Context())
	if err != nil {
		log.Printf("[Backup] list failed: %v", err)
		utils.Error(w, http.StatusInternalServerError, gateway.ErrorTypeInternal, "Failed to list backups")
		return
	}
	utils.JSON(w, http.StatusOK, map[string]interface{}{"configured": true, "snapshots": keys})
}
