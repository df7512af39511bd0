package repositories

import (
	"strings"

	"estateBack/internal/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildListingFilter turns the filter into a WHERE clause and its arguments.
// City and locality are case-insensitive substring matches.
func buildListingFilter(f models.ListingFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.PropertyType != "" {
		conds = append(conds, "property_type = ?")
		args = append(args, f.PropertyType)
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.City != "" {
		conds = append(conds, "LOWER(city) LIKE ?")
		args = append(args, containsPattern(f.City))
	}
	if f.Locality != "" {
		conds = append(conds, "LOWER(locality) LIKE ?")
		args = append(args, containsPattern(f.Locality))
	}
	if f.Bedrooms != nil {
		conds = append(conds, "bedrooms >= ?")
		args = append(args, *f.Bedrooms)
	}
	if f.Bathrooms != nil {
		conds = append(conds, "bathrooms >= ?")
		args = append(args, *f.Bathrooms)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
