package dispatch

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/robodelivery/core/dispatch/logging"
)

// NewLogHandler returns an HTTP handler exposing dispatcher decisions via GET /api/dispatch/logs.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
// Supported filters: start and end (RFC 3339), decision, robot and order.
func NewLogHandler(store logging.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func parseQuery(r *http.Request) (logging.LogQuery, error) {
	var q logging.LogQuery
	v := r.URL.Query()
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.End = t
	}
	q.Decision = logging.Decision(v.Get("decision"))
	if s := v.Get("robot"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			return q, err
		}
		q.Robot = &id
	}
	if s := v.Get("order"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			return q, err
		}
		q.Order = &id
	}
	return q, nil
}
