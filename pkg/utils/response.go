package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[HTTP] encode response failed: %v", err)
	}
}

// Error writes the {"error","type"} document clients decode.
func Error(w http.ResponseWriter, status int, errType, message string) {
	JSON(w, status, map[string]string{"error": message, "type": errType})
}
