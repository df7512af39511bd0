package handlers

import (
	"io"
	"net/http"
)

// Home answers the liveness probe. pat treats "/" as a prefix, so anything
// deeper that reached here is an unknown route.
func Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeNotFound(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "Real Estate Backend is Running!")
}
