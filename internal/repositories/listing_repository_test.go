package repositories

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateBack/internal/models"
)

var (
	listingCols = []string{"id", "property_type", "address", "city", "locality", "price", "area_value", "area_unit",
		"bedrooms", "bathrooms", "description", "features", "status", "mediator_name", "mediator_contact",
		"listing_date", "created_at", "updated_at"}
	photoCols = []string{"id", "listing_id", "storage_kind", "remote_url", "remote_key", "local_name", "mime_type",
		"size_bytes", "created_at"}
	fixedTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func newMockRepo(t *testing.T) (*ListingRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return &ListingRepository{DB: db}, mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func TestInTxInsertsListingAndPhotos(t *testing.T) {
	repo, mock := newMockRepo(t)

	price := 150000.0
	beds := 3
	listing := models.Listing{
		PropertyType: "apartment",
		Address:      "12 MG Road",
		City:         "Bengaluru",
		Status:       "available",
		Price:        &price,
		Bedrooms:     &beds,
		ListingDate:  models.NewDate(fixedTime),
		CreatedAt:    fixedTime,
		UpdatedAt:    fixedTime,
	}
	photo := models.ListingPhoto{
		Location:  models.LocalLocation("abc.jpg"),
		MimeType:  "image/jpeg",
		SizeBytes: 3,
		CreatedAt: fixedTime,
	}

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO listings")).
		WithArgs("apartment", "12 MG Road", "Bengaluru", nil, 150000.0, nil, nil, 3, nil, nil, nil,
			"available", nil, nil, sqlmock.AnyArg(), fixedTime, fixedTime).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(q("INSERT INTO listing_photos")).
		WithArgs(int64(5), "local", nil, nil, "abc.jpg", "image/jpeg", int64(3), fixedTime).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(w ListingWriter) error {
		if err := w.InsertListing(context.Background(), &listing); err != nil {
			return err
		}
		photo.ListingID = listing.ID
		return w.InsertPhoto(context.Background(), &photo)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), listing.ID)
	assert.Equal(t, int64(9), photo.ID)
}

func TestInTxRollsBackOnPhotoFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO listings")).WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(q("INSERT INTO listing_photos")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(w ListingWriter) error {
		l := models.Listing{CreatedAt: fixedTime, UpdatedAt: fixedTime}
		if err := w.InsertListing(context.Background(), &l); err != nil {
			return err
		}
		return w.InsertPhoto(context.Background(), &models.ListingPhoto{
			ListingID: l.ID,
			Location:  models.RemoteLocation("https://cdn.test/listings/a.jpg", "listings/a.jpg"),
			MimeType:  "image/jpeg",
		})
	})
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestInsertPhotoRejectsInvalidLocation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(w ListingWriter) error {
		return w.InsertPhoto(context.Background(), &models.ListingPhoto{
			ListingID: 1,
			Location:  models.PhotoLocation{Kind: models.StorageLocal, LocalName: "a.jpg", RemoteURL: "https://x"},
		})
	})
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestInsertPhotoForeignKeyViolationIsPersistenceError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO listing_photos")).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(w ListingWriter) error {
		return w.InsertPhoto(context.Background(), &models.ListingPhoto{
			ListingID: 404,
			Location:  models.LocalLocation("a.jpg"),
			MimeType:  "image/jpeg",
		})
	})
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}

func TestGetListingsAppliesFilterAndAttachesPhotos(t *testing.T) {
	repo, mock := newMockRepo(t)

	minPrice, maxPrice, beds := 100000.0, 200000.0, 2
	filter := models.ListingFilter{MinPrice: &minPrice, MaxPrice: &maxPrice, City: "Bengal", Bedrooms: &beds}

	mock.ExpectQuery(q("FROM listings WHERE price >= ? AND price <= ? AND LOWER(city) LIKE ? AND bedrooms >= ? ORDER BY id ASC")).
		WithArgs(100000.0, 200000.0, "%bengal%", 2).
		WillReturnRows(sqlmock.NewRows(listingCols).
			AddRow(2, "apartment", "12 MG Road", "Bengaluru", nil, 150000.0, nil, nil, 3, nil, nil, nil,
				"available", nil, nil, fixedTime, fixedTime, fixedTime).
			AddRow(4, "villa", "1 Lake Rd", "Bengaluru", "Whitefield", 199999.0, 1200.5, "sqft", 4, 3, "nice", nil,
				"sold", "Asha", "9999", nil, fixedTime, fixedTime))
	mock.ExpectQuery(q("FROM listing_photos WHERE listing_id IN (?, ?) ORDER BY id ASC")).
		WithArgs(int64(2), int64(4)).
		WillReturnRows(sqlmock.NewRows(photoCols).
			AddRow(10, 2, "remote", "https://cdn.test/listings/a.jpg", "listings/a.jpg", nil, "image/jpeg", 10, fixedTime).
			AddRow(11, 2, "local", nil, nil, "b.png", "image/png", 20, fixedTime))

	listings, err := repo.GetListings(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, int64(2), first.ID)
	assert.Nil(t, first.Locality)
	assert.Equal(t, 150000.0, *first.Price)
	assert.Equal(t, 3, *first.Bedrooms)
	assert.Equal(t, "2024-05-01", first.ListingDate.String())
	require.Len(t, first.StoredPhotos, 2)
	assert.Equal(t, models.RemoteLocation("https://cdn.test/listings/a.jpg", "listings/a.jpg"), first.StoredPhotos[0].Location)
	assert.Equal(t, models.LocalLocation("b.png"), first.StoredPhotos[1].Location)

	second := listings[1]
	assert.Equal(t, "Whitefield", *second.Locality)
	assert.Equal(t, 1200.5, *second.AreaValue)
	assert.Nil(t, second.ListingDate)
	assert.Nil(t, second.Features)
	assert.Empty(t, second.StoredPhotos)
}

func TestGetListingsEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(q("SELECT")).WillReturnRows(sqlmock.NewRows(listingCols))

	listings, err := repo.GetListings(context.Background(), models.ListingFilter{})
	require.NoError(t, err)
	assert.NotNil(t, listings)
	assert.Empty(t, listings)
}

func TestGetListingsQueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(q("SELECT")).WillReturnError(sql.ErrConnDone)

	_, err := repo.GetListings(context.Background(), models.ListingFilter{})
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestGetListingByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(q("FROM listings WHERE id = ?")).WithArgs(int64(7)).WillReturnRows(sqlmock.NewRows(listingCols))

	_, err := repo.GetListingByID(context.Background(), 7)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteListingReturnsRemovedPhotos(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM listing_photos WHERE listing_id = ?")).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(photoCols).
			AddRow(21, 3, "local", nil, nil, "c.jpg", "image/jpeg", 5, fixedTime))
	mock.ExpectExec(q("DELETE FROM listings WHERE id = ?")).WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	photos, err := repo.DeleteListing(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "c.jpg", photos[0].Location.LocalName)
}

func TestDeleteListingNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM listing_photos WHERE listing_id = ?")).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(photoCols))
	mock.ExpectExec(q("DELETE FROM listings WHERE id = ?")).WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.DeleteListing(context.Background(), 3)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetPhotoByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(q("FROM listing_photos WHERE id = ?")).WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(photoCols).
			AddRow(11, 2, "local", nil, nil, "b.png", "image/png", 20, fixedTime))
	mock.ExpectQuery(q("FROM listing_photos WHERE id = ?")).WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows(photoCols))

	p, err := repo.GetPhotoByID(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MimeType)
	assert.Equal(t, int64(20), p.SizeBytes)

	_, err = repo.GetPhotoByID(context.Background(), 12)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBuildListingFilter(t *testing.T) {
	where, args := buildListingFilter(models.ListingFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	baths := 2
	where, args = buildListingFilter(models.ListingFilter{PropertyType: "flat", Locality: "50%_Off", Bathrooms: &baths})
	assert.Equal(t, " WHERE property_type = ? AND LOWER(locality) LIKE ? AND bathrooms >= ?", where)
	assert.Equal(t, []interface{}{"flat", `%50\%\_off%`, 2}, args)
}

func TestEnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)

	stmts := schemaStatements()
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "ON DELETE CASCADE")

	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS listings")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS listing_photos")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureSchema(context.Background(), repo.DB))
}
