package vehicles

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/agv/core/status"
)

// NewStatusHandler returns an HTTP handler listing vehicle status via
// GET /api/vehicles. The optional state query parameter filters by state.
func NewStatusHandler(store status.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := status.Filter{State: strings.ToLower(r.URL.Query().Get("state"))}
		writeJSON(w, http.StatusOK, store.Vehicles(f))
	})
}

// NewVehicleHandler returns an HTTP handler exposing one vehicle via
// GET /api/vehicles/{vehicleId}.
func NewVehicleHandler(store status.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "vehicleId"))
		v, ok := store.Vehicle(id)
		if !ok {
			http.Error(w, "vehicle not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, v)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
