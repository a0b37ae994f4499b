package handlers

import (
	"net/http"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/middleware"
	"unifield-backend/internal/models"
	"unifield-backend/pkg/utils"
)

// RetailerPortalHandler serves the retailer interface.
type RetailerPortalHandler struct {
	Gateway gateway.Gateway
}

func NewRetailerPortalHandler(gw gateway.Gateway) *RetailerPortalHandler {
	return &RetailerPortalHandler{Gateway: gw}
}

// Profile handles GET /api/retailer/profile. The retailer is the one linked
// on the user account, or else the one whose user_id is the current user.
func (h *RetailerPortalHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		utils.Error(w, http.StatusUnauthorized, gateway.ErrorTypeAuth, "Not authenticated")
		return
	}

	q := gateway.Query{}.Eq("user_id", userID)
	if retailerID, ok := middleware.GetRetailerIDFromContext(ctx); ok {
		q = gateway.Query{}.Eq(models.IDField, retailerID)
	}

	res, err := h.Gateway.Select(ctx, models.EntityRetailers, q)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	if len(res.Rows) == 0 {
		utils.Error(w, http.StatusNotFound, gateway.ErrorTypeNotFound, "No retailer linked to this account")
		return
	}
	utils.JSON(w, http.StatusOK, res.Rows[0])
}
