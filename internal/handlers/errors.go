package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"unifield-backend/internal/gateway"
	"unifield-backend/pkg/utils"
)

// writeGatewayError maps a gateway failure to its status code and error type.
func writeGatewayError(w http.ResponseWriter, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, gateway.ErrNotFound), errors.Is(err, gateway.ErrUnknownTable):
		utils.Error(w, http.StatusNotFound, gateway.ErrorTypeNotFound, err.Error())
	case errors.Is(err, gateway.ErrConflict):
		utils.Error(w, http.StatusConflict, gateway.ErrorTypeConflict, err.Error())
	case errors.Is(err, gateway.ErrUnknownColumn),
		errors.Is(err, gateway.ErrEmptyRow),
		errors.Is(err, gateway.ErrInvalidValue):
		utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, err.Error())
	case errors.Is(err, gateway.ErrUnauthorized):
		utils.Error(w, http.StatusUnauthorized, gateway.ErrorTypeAuth, err.Error())
	case errors.As(err, &pgErr):
		writePgError(w, pgErr)
	default:
		log.Printf("[Gateway] %v", err)
		utils.Error(w, http.StatusInternalServerError, gateway.ErrorTypeInternal, "Internal server error")
	}
}

// writePgError surfaces constraint and data errors as client mistakes.
func writePgError(w http.ResponseWriter, pgErr *pgconn.PgError) {
	switch {
	case pgErr.Code == "23505":
		utils.Error(w, http.StatusConflict, gateway.ErrorTypeConflict, pgErr.Message)
	case len(pgErr.Code) == 5 && (pgErr.Code[:2] == "22" || pgErr.Code[:2] == "23"):
		utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, pgErr.Message)
	default:
		log.Printf("[Gateway] postgres %s: %s", pgErr.Code, pgErr.Message)
		utils.Error(w, http.StatusInternalServerError, gateway.ErrorTypeInternal, "Internal server error")
	}
}
