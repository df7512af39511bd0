package handlers

import (
	"net/http"
	"strconv"

	"estateBack/internal/services"
)

type PhotoHandler struct {
	Service *services.ListingService
	Log     services.Logger
}

// ServeListingPhoto writes the raw bytes of a locally stored photo.
// Photos hosted by the object store are not served here.
func (h *PhotoHandler) ServeListingPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeNotFound(w)
		return
	}
	data, mimeType, err := h.Service.GetPhoto(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
