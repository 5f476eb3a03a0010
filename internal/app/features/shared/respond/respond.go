// Package respond writes JSON API responses.
package respond

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
)

// JSON writes v as the response body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Err maps err to its HTTP status and JSON error body. Internal causes
// are logged, never leaked.
func Err(w http.ResponseWriter, log *zap.Logger, err error) {
	apperr.Render(w, log, err)
}
