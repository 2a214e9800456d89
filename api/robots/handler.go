// Package robots exposes the dispatcher's view of the fleet over HTTP.
package robots

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilianp07/robodelivery/core/fleetstatus"
)

// NewStatusHandler returns an HTTP handler exposing robot status data via
// GET /api/robots/status. The state and low_battery query parameters filter
// the result.
func NewStatusHandler(store fleetstatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := fleetstatus.Filter{State: r.URL.Query().Get("state")}
		if s := r.URL.Query().Get("low_battery"); s != "" {
			low, err := strconv.ParseBool(s)
			if err != nil {
				http.Error(w, "invalid low_battery", http.StatusBadRequest)
				return
			}
			f.LowBattery = low
		}
		writeJSON(w, store.List(f))
	})
}

// NewRobotHandler serves GET /api/robots/{id} with the status of one robot.
func NewRobotHandler(store fleetstatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/robots/"), "/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		for _, st := range store.List(fleetstatus.Filter{}) {
			if st.RobotID == id {
				writeJSON(w, st)
				return
			}
		}
		http.NotFound(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
