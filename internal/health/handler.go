// Package health serves the liveness endpoint.
package health

import (
	"net/http"
)

// Handler reports that the process is up
func Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
