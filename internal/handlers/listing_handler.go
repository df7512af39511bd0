package handlers

import (
	"errors"
	"net/http"

	"estateBack/internal/models"
	"estateBack/internal/services"
)

const (
	multipartMemory      = 32 << 20
	defaultMaxPhotoBytes = 10 << 20
	defaultMaxPhotos     = 20
)

type ListingHandler struct {
	Service       *services.ListingService
	Log           services.Logger
	MaxPhotoBytes int64
	MaxPhotos     int
}

// CreateListing accepts a multipart (or urlencoded) form with the listing
// fields and any number of photo files.
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.Log, models.NewValidationError("", "request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, h.Log, models.NewValidationError("", "invalid form: %v", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	req, err := services.ParseCreateListingForm(r.PostForm)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	uploads, err := readPhotoUploads(r.MultipartForm, h.maxPhotoBytes())
	if err != nil {
		writeError(w, h.Log, models.NewValidationError("photos", "%v", err))
		return
	}

	listing, err := h.Service.CreateListing(r.Context(), req, uploads)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *ListingHandler) GetListings(w http.ResponseWriter, r *http.Request) {
	filter, err := services.ParseListingFilter(r.URL.Query())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	listings, err := h.Service.ListListings(r.Context(), filter)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *ListingHandler) GetListingByID(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeNotFound(w)
		return
	}
	listing, err := h.Service.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeNotFound(w)
		return
	}
	if err := h.Service.DeleteListing(r.Context(), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Listing deleted successfully!"})
}

func (h *ListingHandler) maxPhotoBytes() int64 {
	if h.MaxPhotoBytes > 0 {
		return h.MaxPhotoBytes
	}
	return defaultMaxPhotoBytes
}

// maxBodyBytes leaves room for the text fields and multipart framing on top
// of the photo allowance.
func (h *ListingHandler) maxBodyBytes() int64 {
	photos := h.MaxPhotos
	if photos <= 0 {
		photos = defaultMaxPhotos
	}
	return int64(photos)*h.maxPhotoBytes() + 1<<20
}
