package api

import "net/http"

// health is the liveness probe.
func health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StoreStats reports the sizes of the persistent stores for the readiness
// probe.
type StoreStats interface {
	Stats() map[string]int
}

// readiness reports whether the server can answer, including store sizes
// when available.
func readiness(stats StoreStats) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"status": "ok"}
		if stats != nil {
			body["stores"] = stats.Stats()
		}
		WriteJSON(w, http.StatusOK, body)
	})
}
