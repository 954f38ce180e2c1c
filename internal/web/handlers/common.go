package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/class-attendance/internal/constants"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// readFormFile reads one uploaded file of a parsed multipart form.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s is required", field)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s", field)
	}
	if len(data) > constants.MaxUploadSize {
		return nil, fmt.Errorf("%s is too large", field)
	}
	return data, nil
}

// formInt parses an optional integer form value that must be at least min.
func formInt(r *http.Request, key string, min int) (int, bool, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return 0, false, fmt.Errorf("%s must be an integer >= %d", key, min)
	}
	return v, true, nil
}

// formFloat parses an optional float form value that must be greater than min.
func formFloat(r *http.Request, key string, min float64) (float64, bool, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= min {
		return 0, false, fmt.Errorf("%s must be a number > %g", key, min)
	}
	return v, true, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
