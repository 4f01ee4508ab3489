package channel

import (
	"encoding/json"
	"net/http"
)

func writeText(rw http.ResponseWriter, status int, text string) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(status)
	rw.Write([]byte(text))
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

func writeJSONError(rw http.ResponseWriter, status int, detail string) {
	writeJSON(rw, status, map[string]string{"error": detail})
}

func writeStatusOK(rw http.ResponseWriter) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}
