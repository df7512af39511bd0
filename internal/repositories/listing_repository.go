package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"estateBack/internal/models"
)

const listingColumns = `id, property_type, address, city, locality, price, area_value, area_unit, bedrooms, bathrooms,
       description, features, status, mediator_name, mediator_contact, listing_date, created_at, updated_at`

const photoColumns = `id, listing_id, storage_kind, remote_url, remote_key, local_name, mime_type, size_bytes, created_at`

// ListingWriter is the set of writes that run inside one create transaction.
type ListingWriter interface {
	InsertListing(ctx context.Context, listing *models.Listing) error
	InsertPhoto(ctx context.Context, photo *models.ListingPhoto) error
}

type ListingRepository struct {
	DB *sql.DB
}

// InTx runs fn inside a transaction. The transaction commits only when fn
// returns nil; any error rolls every write back.
func (r *ListingRepository) InTx(ctx context.Context, fn func(w ListingWriter) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&listingTx{tx: tx})
	})
}

type listingTx struct {
	tx *sql.Tx
}

func (t *listingTx) InsertListing(ctx context.Context, l *models.Listing) error {
	query := `
    INSERT INTO listings (property_type, address, city, locality, price, area_value, area_unit, bedrooms, bathrooms,
                          description, features, status, mediator_name, mediator_contact, listing_date, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	var listingDate interface{}
	if l.ListingDate != nil {
		listingDate = l.ListingDate.Time
	}

	result, err := t.tx.ExecContext(ctx, query,
		l.PropertyType,
		l.Address,
		l.City,
		l.Locality,
		l.Price,
		l.AreaValue,
		l.AreaUnit,
		l.Bedrooms,
		l.Bathrooms,
		l.Description,
		l.Features,
		l.Status,
		l.MediatorName,
		l.MediatorContact,
		listingDate,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return persistenceError("insert listing", err)
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return persistenceError("insert listing", err)
	}
	l.ID = lastID
	return nil
}

func (t *listingTx) InsertPhoto(ctx context.Context, p *models.ListingPhoto) error {
	if err := p.Location.Validate(); err != nil {
		return fmt.Errorf("insert listing photo: %w: %w", models.ErrPersistence, err)
	}
	query := `
    INSERT INTO listing_photos (listing_id, storage_kind, remote_url, remote_key, local_name, mime_type, size_bytes, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	result, err := t.tx.ExecContext(ctx, query,
		p.ListingID,
		string(p.Location.Kind),
		nullString(p.Location.RemoteURL),
		nullString(p.Location.RemoteKey),
		nullString(p.Location.LocalName),
		p.MimeType,
		p.SizeBytes,
		p.CreatedAt,
	)
	if err != nil {
		return persistenceError("insert listing photo", err)
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return persistenceError("insert listing photo", err)
	}
	p.ID = lastID
	return nil
}

func (r *ListingRepository) GetListingByID(ctx context.Context, id int64) (models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`

	l, err := scanListing(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Listing{}, models.ErrNotFound
	}
	if err != nil {
		return models.Listing{}, persistenceError("get listing", err)
	}

	photos, err := r.photosByListing(ctx, []int64{l.ID})
	if err != nil {
		return models.Listing{}, err
	}
	l.StoredPhotos = photos[l.ID]
	return l, nil
}

// GetListings returns every listing matching the filter, oldest first,
// with their photos attached in insertion order.
func (r *ListingRepository) GetListings(ctx context.Context, f models.ListingFilter) ([]models.Listing, error) {
	where, args := buildListingFilter(f)
	query := `SELECT ` + listingColumns + ` FROM listings` + where + ` ORDER BY id ASC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list listings", err)
	}
	defer rows.Close()

	var listings []models.Listing
	var ids []int64
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, persistenceError("scan listing", err)
		}
		listings = append(listings, l)
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list listings", err)
	}
	if len(listings) == 0 {
		return []models.Listing{}, nil
	}

	photos, err := r.photosByListing(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		listings[i].StoredPhotos = photos[listings[i].ID]
	}
	return listings, nil
}

// DeleteListing removes the listing; its photo rows go with it through the
// cascade. The removed photos are returned so their bytes can be cleaned up.
func (r *ListingRepository) DeleteListing(ctx context.Context, id int64) ([]models.ListingPhoto, error) {
	var removed []models.ListingPhoto
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		photos, err := queryPhotos(ctx, tx, `SELECT `+photoColumns+` FROM listing_photos WHERE listing_id = ? ORDER BY id ASC`, id)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
		if err != nil {
			return persistenceError("delete listing", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return persistenceError("delete listing", err)
		}
		if rowsAffected == 0 {
			return models.ErrNotFound
		}
		removed = photos
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *ListingRepository) GetPhotoByID(ctx context.Context, id int64) (models.ListingPhoto, error) {
	photos, err := queryPhotos(ctx, r.DB, `SELECT `+photoColumns+` FROM listing_photos WHERE id = ?`, id)
	if err != nil {
		return models.ListingPhoto{}, err
	}
	if len(photos) == 0 {
		return models.ListingPhoto{}, models.ErrNotFound
	}
	return photos[0], nil
}

func (r *ListingRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return persistenceError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return persistenceError("commit transaction", err)
	}
	return nil
}

func (r *ListingRepository) photosByListing(ctx context.Context, listingIDs []int64) (map[int64][]models.ListingPhoto, error) {
	placeholders := make([]string, len(listingIDs))
	args := make([]interface{}, len(listingIDs))
	for i, id := range listingIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT ` + photoColumns + ` FROM listing_photos WHERE listing_id IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY id ASC`

	photos, err := queryPhotos(ctx, r.DB, query, args...)
	if err != nil {
		return nil, err
	}
	byListing := make(map[int64][]models.ListingPhoto, len(listingIDs))
	for _, p := range photos {
		byListing[p.ListingID] = append(byListing[p.ListingID], p)
	}
	return byListing, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func queryPhotos(ctx context.Context, q queryer, query string, args ...interface{}) ([]models.ListingPhoto, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("query listing photos", err)
	}
	defer rows.Close()

	var photos []models.ListingPhoto
	for rows.Next() {
		var p models.ListingPhoto
		var kind string
		var remoteURL, remoteKey, localName sql.NullString
		if err := rows.Scan(&p.ID, &p.ListingID, &kind, &remoteURL, &remoteKey, &localName, &p.MimeType, &p.SizeBytes, &p.CreatedAt); err != nil {
			return nil, persistenceError("scan listing photo", err)
		}
		p.Location = models.PhotoLocation{
			Kind:      models.StorageKind(kind),
			RemoteURL: remoteURL.String,
			RemoteKey: remoteKey.String,
			LocalName: localName.String,
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("query listing photos", err)
	}
	return photos, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (models.Listing, error) {
	var l models.Listing
	var locality, areaUnit, description, features, mediatorName, mediatorContact sql.NullString
	var price, areaValue sql.NullFloat64
	var bedrooms, bathrooms sql.NullInt64
	var listingDate sql.NullTime

	err := row.Scan(
		&l.ID, &l.PropertyType, &l.Address, &l.City, &locality, &price, &areaValue, &areaUnit, &bedrooms, &bathrooms,
		&description, &features, &l.Status, &mediatorName, &mediatorContact, &listingDate, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return models.Listing{}, err
	}

	l.Locality = stringPtr(locality)
	l.AreaUnit = stringPtr(areaUnit)
	l.Description = stringPtr(description)
	l.Features = stringPtr(features)
	l.MediatorName = stringPtr(mediatorName)
	l.MediatorContact = stringPtr(mediatorContact)
	if price.Valid {
		l.Price = &price.Float64
	}
	if areaValue.Valid {
		l.AreaValue = &areaValue.Float64
	}
	if bedrooms.Valid {
		v := int(bedrooms.Int64)
		l.Bedrooms = &v
	}
	if bathrooms.Valid {
		v := int(bathrooms.Int64)
		l.Bathrooms = &v
	}
	if listingDate.Valid {
		l.ListingDate = models.NewDate(listingDate.Time)
	}
	return l, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
