package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// writeJSONError writes a json error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}

// writeJSON writes a json response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode json response", zap.Error(err))
	}
}
