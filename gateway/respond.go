package gateway

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

const maxFormBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// isJSON reports whether the request body is JSON.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// wantsJSON reports whether the caller is a fetch client rather than a form post or page load.
func wantsJSON(r *http.Request) bool {
	if isJSON(r) {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// decodeForm fills dst from a JSON body or from url-encoded form values keyed by the json tags
// passed in fields.
func decodeForm(w http.ResponseWriter, r *http.Request, dst any, fields map[string]*string) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if isJSON(r) {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	for key, field := range fields {
		*field = r.PostForm.Get(key)
	}
	return nil
}

// safeRedirect returns from when it is a local path, "" otherwise.
func safeRedirect(from string) string {
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return ""
	}
	return from
}
