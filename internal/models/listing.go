package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type Listing struct {
	ID              int64      `json:"id"`
	PropertyType    string     `json:"property_type"`
	Address         string     `json:"address"`
	City            string     `json:"city"`
	Locality        *string    `json:"locality"`
	Price           *float64   `json:"price"`
	AreaValue       *float64   `json:"area_value"`
	AreaUnit        *string    `json:"area_unit"`
	Bedrooms        *int       `json:"bedrooms"`
	Bathrooms       *int       `json:"bathrooms"`
	Description     *string    `json:"description"`
	Features        *string    `json:"features"`
	Status          string     `json:"status"`
	MediatorName    *string    `json:"mediator_name"`
	MediatorContact *string    `json:"mediator_contact"`
	ListingDate     *Date      `json:"listing_date"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Photos          []PhotoRef `json:"photos"`

	// StoredPhotos is what the persistence layer loaded; Photos is derived from it.
	StoredPhotos []ListingPhoto `json:"-"`
}

// PhotoRef is the public descriptor of a listing photo.
type PhotoRef struct {
	ID  int64  `json:"id"`
	URL string `json:"image_url"`
}

// Date is a calendar day without time of day, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) *Date {
	y, m, d := t.Date()
	return &Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (*Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// ListingFilter holds optional, AND-combined search criteria.
// Empty strings and nil pointers mean "not filtered".
type ListingFilter struct {
	PropertyType string
	MinPrice     *float64
	MaxPrice     *float64
	City         string
	Locality     string
	Bedrooms     *int
	Bathrooms    *int
}

// CacheKey renders the filter in a canonical form.
func (f ListingFilter) CacheKey() string {
	var b strings.Builder
	b.WriteString("type=" + strings.ToLower(f.PropertyType))
	b.WriteString("|min=" + formatFloatPtr(f.MinPrice))
	b.WriteString("|max=" + formatFloatPtr(f.MaxPrice))
	b.WriteString("|city=" + strings.ToLower(f.City))
	b.WriteString("|loc=" + strings.ToLower(f.Locality))
	b.WriteString("|bed=" + formatIntPtr(f.Bedrooms))
	b.WriteString("|bath=" + formatIntPtr(f.Bathrooms))
	return b.String()
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
