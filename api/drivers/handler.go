// Package drivers exposes driver status data over HTTP.
package drivers

import (
	"encoding/json"
	"net/http"

	"github.com/courierflow/dispatch/core/driverstatus"
)

// NewStatusHandler returns an HTTP handler exposing driver status data via
// GET /api/drivers/status.
func NewStatusHandler(store driverstatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := driverstatus.Filter{
			City:   r.URL.Query().Get("city"),
			Status: r.URL.Query().Get("status"),
		}
		entries := store.List(f)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
