package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"estateBack/internal/events"
	"estateBack/internal/models"
	"estateBack/internal/repositories"
)

const (
	defaultUploadConcurrency = 4
	defaultMaxPhotos         = 20
	defaultMaxPhotoBytes     = 10 << 20
)

// Logger provides minimal logging required by the service.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type ListingStore interface {
	InTx(ctx context.Context, fn func(w repositories.ListingWriter) error) error
	GetListings(ctx context.Context, f models.ListingFilter) ([]models.Listing, error)
	GetListingByID(ctx context.Context, id int64) (models.Listing, error)
	DeleteListing(ctx context.Context, id int64) ([]models.ListingPhoto, error)
	GetPhotoByID(ctx context.Context, id int64) (models.ListingPhoto, error)
}

type PhotoStorage interface {
	Store(ctx context.Context, data []byte, mimeType, filenameHint string) (models.PhotoLocation, error)
	Open(ctx context.Context, loc models.PhotoLocation) ([]byte, error)
	Remove(ctx context.Context, loc models.PhotoLocation) error
}

type ListCache interface {
	Version(ctx context.Context) (int64, error)
	Get(ctx context.Context, version int64, filterKey string) ([]models.Listing, bool, error)
	Set(ctx context.Context, version int64, filterKey string, listings []models.Listing) error
	Invalidate(ctx context.Context) error
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// ListingService orchestrates listings and their photos. Cache and Events
// are optional.
type ListingService struct {
	Store  ListingStore
	Photos PhotoStorage
	Cache  ListCache
	Events EventPublisher
	Log    Logger

	// PhotoBaseURL prefixes URLs of locally stored photos. Empty yields
	// relative URLs.
	PhotoBaseURL      string
	UploadConcurrency int
	MaxPhotos         int
	MaxPhotoBytes     int64

	now func() time.Time
}

// CreateListing validates the request, stores the listing with all of its
// photos in one transaction and returns it with photo URLs. On failure no
// row and no stored photo survives.
func (s *ListingService) CreateListing(ctx context.Context, req CreateListingRequest, uploads []PhotoUpload) (models.Listing, error) {
	if err := req.Validate(); err != nil {
		return models.Listing{}, err
	}
	uploads, err := s.preparePhotos(uploads)
	if err != nil {
		return models.Listing{}, err
	}

	now := s.clock().UTC().Truncate(time.Second)
	listing := req.toListing(now)

	var stored []models.ListingPhoto
	err = s.Store.InTx(ctx, func(w repositories.ListingWriter) error {
		if err := w.InsertListing(ctx, &listing); err != nil {
			return err
		}

		var storeErr error
		stored, storeErr = s.storePhotos(ctx, listing.ID, now, uploads)
		if storeErr != nil {
			return storeErr
		}
		for i := range stored {
			if err := w.InsertPhoto(ctx, &stored[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.removePhotos(context.WithoutCancel(ctx), stored)
		s.Log.Errorf("create listing failed: %v", err)
		return models.Listing{}, err
	}

	listing.StoredPhotos = stored
	s.decorate(&listing)
	s.afterMutation(ctx, events.SubjectListingCreated, events.ListingEvent{
		ListingID:  listing.ID,
		PhotoCount: len(stored),
		OccurredAt: now,
	})
	s.Log.Infof("listing %d created with %d photos", listing.ID, len(stored))
	return listing, nil
}

// storePhotos hands every upload to the photo storage in parallel. Results
// keep the input order. If any upload fails, the ones that succeeded are
// still returned so the caller can remove them.
func (s *ListingService) storePhotos(ctx context.Context, listingID int64, now time.Time, uploads []PhotoUpload) ([]models.ListingPhoto, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	locations := make([]models.PhotoLocation, len(uploads))
	ok := make([]bool, len(uploads))

	g := new(errgroup.Group)
	g.SetLimit(s.uploadConcurrency())
	for i, up := range uploads {
		g.Go(func() error {
			loc, err := s.Photos.Store(ctx, up.Data, up.MimeType, up.Filename)
			if err != nil {
				return fmt.Errorf("store photo %q: %w", up.Filename, err)
			}
			locations[i] = loc
			ok[i] = true
			return nil
		})
	}
	err := g.Wait()

	photos := make([]models.ListingPhoto, 0, len(uploads))
	for i, up := range uploads {
		if !ok[i] {
			continue
		}
		photos = append(photos, models.ListingPhoto{
			ListingID: listingID,
			Location:  locations[i],
			MimeType:  up.MimeType,
			SizeBytes: int64(len(up.Data)),
			CreatedAt: now,
		})
	}
	return photos, err
}

// preparePhotos drops empty parts and checks the rest.
func (s *ListingService) preparePhotos(uploads []PhotoUpload) ([]PhotoUpload, error) {
	maxPhotos := s.MaxPhotos
	if maxPhotos <= 0 {
		maxPhotos = defaultMaxPhotos
	}
	maxBytes := s.MaxPhotoBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxPhotoBytes
	}

	prepared := make([]PhotoUpload, 0, len(uploads))
	for _, up := range uploads {
		if up.Filename == "" || len(up.Data) == 0 {
			continue
		}
		if int64(len(up.Data)) > maxBytes {
			return nil, models.NewValidationError("photos", "%q exceeds %d bytes", up.Filename, maxBytes)
		}
		mimeType, err := photoMimeType(up)
		if err != nil {
			return nil, err
		}
		up.MimeType = mimeType
		prepared = append(prepared, up)
	}
	if len(prepared) > maxPhotos {
		return nil, models.NewValidationError("photos", "at most %d photos are allowed, got %d", maxPhotos, len(prepared))
	}
	return prepared, nil
}

func photoMimeType(up PhotoUpload) (string, error) {
	mimeType := up.MimeType
	if base, _, err := mime.ParseMediaType(mimeType); err != nil || base == "application/octet-stream" {
		mimeType = http.DetectContentType(up.Data)
	}
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil || !strings.HasPrefix(base, "image/") {
		return "", models.NewValidationError("photos", "%q is not an image (%s)", up.Filename, mimeType)
	}
	return base, nil
}

// ListListings returns listings matching the filter, oldest first.
func (s *ListingService) ListListings(ctx context.Context, f models.ListingFilter) ([]models.Listing, error) {
	key := f.CacheKey()
	cache := s.Cache
	var version int64
	if cache != nil {
		var err error
		if version, err = cache.Version(ctx); err != nil {
			s.Log.Warnf("listing cache version read failed: %v", err)
			cache = nil
		}
	}
	if cache != nil {
		cached, hit, err := cache.Get(ctx, version, key)
		if err != nil {
			s.Log.Warnf("listing cache read failed: %v", err)
		} else if hit {
			return cached, nil
		}
	}

	listings, err := s.Store.GetListings(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		s.decorate(&listings[i])
	}

	if cache != nil {
		if err := cache.Set(ctx, version, key, listings); err != nil {
			s.Log.Warnf("listing cache write failed: %v", err)
		}
	}
	return listings, nil
}

func (s *ListingService) GetListing(ctx context.Context, id int64) (models.Listing, error) {
	listing, err := s.Store.GetListingByID(ctx, id)
	if err != nil {
		return models.Listing{}, err
	}
	s.decorate(&listing)
	return listing, nil
}

// DeleteListing removes the listing and its photo rows. Stored photo bytes
// are removed after the commit; failures there are only logged.
func (s *ListingService) DeleteListing(ctx context.Context, id int64) error {
	photos, err := s.Store.DeleteListing(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.Log.Errorf("delete listing %d failed: %v", id, err)
		}
		return err
	}

	s.removePhotos(context.WithoutCancel(ctx), photos)
	s.afterMutation(ctx, events.SubjectListingDeleted, events.ListingEvent{
		ListingID:  id,
		PhotoCount: len(photos),
		OccurredAt: s.clock().UTC(),
	})
	s.Log.Infof("listing %d deleted with %d photos", id, len(photos))
	return nil
}

// GetPhoto returns the bytes and mime type of a locally stored photo.
func (s *ListingService) GetPhoto(ctx context.Context, id int64) ([]byte, string, error) {
	photo, err := s.Store.GetPhotoByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if photo.Location.Kind != models.StorageLocal {
		return nil, "", models.ErrNotFound
	}
	data, err := s.Photos.Open(ctx, photo.Location)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("photo %d bytes missing: %w", id, models.ErrNotFound)
		}
		return nil, "", fmt.Errorf("read photo %d: %w: %w", id, models.ErrStorage, err)
	}
	return data, photo.MimeType, nil
}

// PhotoURL is the public URL of a stored photo.
func (s *ListingService) PhotoURL(p models.ListingPhoto) string {
	if p.Location.Kind == models.StorageRemote {
		return p.Location.RemoteURL
	}
	return fmt.Sprintf("%s/listing_photos/%d", strings.TrimRight(s.PhotoBaseURL, "/"), p.ID)
}

func (s *ListingService) decorate(l *models.Listing) {
	l.Photos = make([]models.PhotoRef, 0, len(l.StoredPhotos))
	for _, p := range l.StoredPhotos {
		l.Photos = append(l.Photos, models.PhotoRef{ID: p.ID, URL: s.PhotoURL(p)})
	}
}

func (s *ListingService) removePhotos(ctx context.Context, photos []models.ListingPhoto) {
	for _, p := range photos {
		if err := s.Photos.Remove(ctx, p.Location); err != nil {
			s.Log.Warnf("remove photo of listing %d (%s): %v", p.ListingID, p.Location.Kind, err)
		}
	}
}

func (s *ListingService) afterMutation(ctx context.Context, subject string, evt events.ListingEvent) {
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx); err != nil {
			s.Log.Warnf("listing cache invalidation failed: %v", err)
		}
	}
	if s.Events != nil {
		if err := s.Events.Publish(ctx, subject, evt); err != nil {
			s.Log.Warnf("publish %s for listing %d failed: %v", subject, evt.ListingID, err)
		}
	}
}

func (s *ListingService) uploadConcurrency() int {
	if s.UploadConcurrency > 0 {
		return s.UploadConcurrency
	}
	return defaultUploadConcurrency
}

func (s *ListingService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
