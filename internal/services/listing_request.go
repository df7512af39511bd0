package services

import (
	"errors"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"estateBack/internal/models"
)

// CreateListingRequest is the typed form of a create call. Optional fields
// are nil when the client did not send them.
type CreateListingRequest struct {
	PropertyType    string       `json:"property_type" validate:"required,max=50"`
	Address         string       `json:"address" validate:"required,max=200"`
	City            string       `json:"city" validate:"required,max=100"`
	Status          string       `json:"status" validate:"required,max=50"`
	Locality        *string      `json:"locality" validate:"omitempty,max=100"`
	Price           *float64     `json:"price" validate:"omitempty,gte=0"`
	AreaValue       *float64     `json:"area_value" validate:"omitempty,gte=0"`
	AreaUnit        *string      `json:"area_unit" validate:"omitempty,max=20"`
	Bedrooms        *int         `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms       *int         `json:"bathrooms" validate:"omitempty,gte=0"`
	Description     *string      `json:"description"`
	Features        *string      `json:"features"`
	MediatorName    *string      `json:"mediator_name" validate:"omitempty,max=100"`
	MediatorContact *string      `json:"mediator_contact" validate:"omitempty,max=20"`
	ListingDate     *models.Date `json:"listing_date" validate:"-"`
}

// PhotoUpload is one photo file attached to a create call.
type PhotoUpload struct {
	Filename string
	MimeType string
	Data     []byte
}

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// ParseCreateListingForm converts raw form values. Empty or missing values
// leave optional fields unset; values that cannot be parsed are rejected.
func ParseCreateListingForm(values url.Values) (CreateListingRequest, error) {
	var req CreateListingRequest
	var err error

	req.PropertyType = formValue(values, "property_type")
	req.Address = formValue(values, "address")
	req.City = formValue(values, "city")
	req.Status = formValue(values, "status")
	req.Locality = optionalString(values, "locality")
	req.AreaUnit = optionalString(values, "area_unit")
	req.Description = optionalString(values, "description")
	req.Features = optionalString(values, "features")
	req.MediatorName = optionalString(values, "mediator_name")
	req.MediatorContact = optionalString(values, "mediator_contact")

	if req.Price, err = optionalFloat(values, "price"); err != nil {
		return CreateListingRequest{}, err
	}
	if req.AreaValue, err = optionalFloat(values, "area_value"); err != nil {
		return CreateListingRequest{}, err
	}
	if req.Bedrooms, err = optionalInt(values, "bedrooms"); err != nil {
		return CreateListingRequest{}, err
	}
	if req.Bathrooms, err = optionalInt(values, "bathrooms"); err != nil {
		return CreateListingRequest{}, err
	}
	if raw := formValue(values, "listing_date"); raw != "" {
		date, perr := models.ParseDate(raw)
		if perr != nil {
			return CreateListingRequest{}, models.NewValidationError("listing_date", "must be a valid date in YYYY-MM-DD format, got %q", raw)
		}
		req.ListingDate = date
	}
	return req, nil
}

// Validate reports the first invalid field. Required strings must not be
// blank.
func (r CreateListingRequest) Validate() error {
	r.PropertyType = strings.TrimSpace(r.PropertyType)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Status = strings.TrimSpace(r.Status)

	err := requestValidator.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return models.NewValidationError(fe.Field(), "is required")
	case "max":
		return models.NewValidationError(fe.Field(), "must be at most %s characters", fe.Param())
	case "gte":
		return models.NewValidationError(fe.Field(), "must not be negative")
	}
	return models.NewValidationError(fe.Field(), "failed %s check", fe.Tag())
}

func (r CreateListingRequest) toListing(now time.Time) models.Listing {
	return models.Listing{
		PropertyType:    strings.TrimSpace(r.PropertyType),
		Address:         strings.TrimSpace(r.Address),
		City:            strings.TrimSpace(r.City),
		Status:          strings.TrimSpace(r.Status),
		Locality:        r.Locality,
		Price:           r.Price,
		AreaValue:       r.AreaValue,
		AreaUnit:        r.AreaUnit,
		Bedrooms:        r.Bedrooms,
		Bathrooms:       r.Bathrooms,
		Description:     r.Description,
		Features:        r.Features,
		MediatorName:    r.MediatorName,
		MediatorContact: r.MediatorContact,
		ListingDate:     r.ListingDate,
		CreatedAt:       now,
		UpdatedAt:       now,
		Photos:          []models.PhotoRef{},
	}
}

// ParseListingFilter reads list filters from query parameters.
func ParseListingFilter(values url.Values) (models.ListingFilter, error) {
	var f models.ListingFilter
	var err error

	f.PropertyType = formValue(values, "property_type")
	f.City = formValue(values, "city")
	f.Locality = formValue(values, "locality")
	if f.MinPrice, err = optionalFloat(values, "min_price"); err != nil {
		return models.ListingFilter{}, err
	}
	if f.MaxPrice, err = optionalFloat(values, "max_price"); err != nil {
		return models.ListingFilter{}, err
	}
	if f.Bedrooms, err = optionalInt(values, "bedrooms"); err != nil {
		return models.ListingFilter{}, err
	}
	if f.Bathrooms, err = optionalInt(values, "bathrooms"); err != nil {
		return models.ListingFilter{}, err
	}
	return f, nil
}

func formValue(values url.Values, key string) string {
	return strings.TrimSpace(values.Get(key))
}

func optionalString(values url.Values, key string) *string {
	v := formValue(values, key)
	if v == "" {
		return nil
	}
	return &v
}

func optionalFloat(values url.Values, key string) (*float64, error) {
	raw := formValue(values, key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, models.NewValidationError(key, "must be a number, got %q", raw)
	}
	return &v, nil
}

func optionalInt(values url.Values, key string) (*int, error) {
	raw := formValue(values, key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, models.NewValidationError(key, "must be an integer, got %q", raw)
	}
	return &v, nil
}
