// Package servicetest provides an in-memory listing store for tests.
package servicetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"estateBack/internal/models"
	"estateBack/internal/repositories"
)

var ErrInjected = errors.New("servicetest: injected failure")

// MemStore mirrors the MySQL repository semantics: staged transactions,
// cascade delete and the same filter rules.
type MemStore struct {
	mu          sync.Mutex
	listings    map[int64]models.Listing
	photos      map[int64]models.ListingPhoto
	nextListing int64
	nextPhoto   int64

	// FailPhotoInsert makes the Nth photo insert of a transaction fail (1-based).
	FailPhotoInsert int
	// FailReads makes every read return a persistence error.
	FailReads bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		listings: make(map[int64]models.Listing),
		photos:   make(map[int64]models.ListingPhoto),
	}
}

type memTx struct {
	store    *MemStore
	listings []models.Listing
	photos   []models.ListingPhoto
}

func (t *memTx) InsertListing(ctx context.Context, l *models.Listing) error {
	t.store.mu.Lock()
	t.store.nextListing++
	l.ID = t.store.nextListing
	t.store.mu.Unlock()

	cp := *l
	cp.Photos = nil
	cp.StoredPhotos = nil
	t.listings = append(t.listings, cp)
	return nil
}

func (t *memTx) InsertPhoto(ctx context.Context, p *models.ListingPhoto) error {
	if t.store.FailPhotoInsert > 0 && len(t.photos)+1 == t.store.FailPhotoInsert {
		return errors.Join(models.ErrPersistence, ErrInjected)
	}
	if err := p.Location.Validate(); err != nil {
		return errors.Join(models.ErrPersistence, err)
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if !t.hasListing(p.ListingID) {
		if _, ok := t.store.listings[p.ListingID]; !ok {
			return models.ErrNotFound
		}
	}
	t.store.nextPhoto++
	p.ID = t.store.nextPhoto
	t.photos = append(t.photos, *p)
	return nil
}

func (t *memTx) hasListing(id int64) bool {
	for _, l := range t.listings {
		if l.ID == id {
			return true
		}
	}
	return false
}

func (s *MemStore) InTx(ctx context.Context, fn func(w repositories.ListingWriter) error) error {
	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range tx.listings {
		s.listings[l.ID] = l
	}
	for _, p := range tx.photos {
		s.photos[p.ID] = p
	}
	return nil
}

func (s *MemStore) GetListings(ctx context.Context, f models.ListingFilter) ([]models.Listing, error) {
	if s.FailReads {
		return nil, errors.Join(models.ErrPersistence, ErrInjected)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	listings := []models.Listing{}
	for _, l := range s.listings {
		if matches(l, f) {
			l.StoredPhotos = s.photosOf(l.ID)
			listings = append(listings, l)
		}
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings, nil
}

func (s *MemStore) GetListingByID(ctx context.Context, id int64) (models.Listing, error) {
	if s.FailReads {
		return models.Listing{}, errors.Join(models.ErrPersistence, ErrInjected)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return models.Listing{}, models.ErrNotFound
	}
	l.StoredPhotos = s.photosOf(id)
	return l, nil
}

func (s *MemStore) DeleteListing(ctx context.Context, id int64) ([]models.ListingPhoto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return nil, models.ErrNotFound
	}
	removed := s.photosOf(id)
	for _, p := range removed {
		delete(s.photos, p.ID)
	}
	delete(s.listings, id)
	return removed, nil
}

func (s *MemStore) GetPhotoByID(ctx context.Context, id int64) (models.ListingPhoto, error) {
	if s.FailReads {
		return models.ListingPhoto{}, errors.Join(models.ErrPersistence, ErrInjected)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[id]
	if !ok {
		return models.ListingPhoto{}, models.ErrNotFound
	}
	return p, nil
}

// Counts returns the number of committed listings and photos.
func (s *MemStore) Counts() (listings, photos int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listings), len(s.photos)
}

func (s *MemStore) photosOf(listingID int64) []models.ListingPhoto {
	var out []models.ListingPhoto
	for _, p := range s.photos {
		if p.ListingID == listingID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matches(l models.Listing, f models.ListingFilter) bool {
	if f.PropertyType != "" && l.PropertyType != f.PropertyType {
		return false
	}
	if f.MinPrice != nil && (l.Price == nil || *l.Price < *f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && (l.Price == nil || *l.Price > *f.MaxPrice) {
		return false
	}
	if f.City != "" && !containsFold(l.City, f.City) {
		return false
	}
	if f.Locality != "" && (l.Locality == nil || !containsFold(*l.Locality, f.Locality)) {
		return false
	}
	if f.Bedrooms != nil && (l.Bedrooms == nil || *l.Bedrooms < *f.Bedrooms) {
		return false
	}
	if f.Bathrooms != nil && (l.Bathrooms == nil || *l.Bathrooms < *f.Bathrooms) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
