package persistence

import (
	"strings"

	"github.com/bhavan/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ServiceRequestSortFields contains allowed sort fields for service requests
var ServiceRequestSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"reference_number": true,
	"status":           true,
	"payment_status":   true,
	"amount":           true,
	"customer_name":    true,
}

// LeadSortFields contains allowed sort fields for leads
var LeadSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"submitted_at": true,
	"form_type":    true,
	"status":       true,
	"name":         true,
}

// ListingSortFields contains allowed sort fields for listings
var ListingSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"title":       true,
	"city":        true,
	"price":       true,
	"status":      true,
	"reviewed_at": true,
}

// ReferralEventSortFields contains allowed sort fields for referral events
var ReferralEventSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"occurred_at":  true,
	"type":         true,
	"affiliate_id": true,
	"amount":       true,
}

// applyEquals adds an equality condition for each allowed filter key present in f.
func applyEquals(query *gorm.DB, f shared.Filter, columns ...string) *gorm.DB {
	for _, col := range columns {
		v, ok := f.Filters[col]
		if !ok {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		query = query.Where(col+" = ?", v)
	}
	return query
}

// applySearch adds a case-insensitive LIKE over columns when f.Search is set.
func applySearch(query *gorm.DB, f shared.Filter, columns ...string) *gorm.DB {
	term := strings.TrimSpace(f.Search)
	if term == "" || len(columns) == 0 {
		return query
	}
	pattern := "%" + strings.ToLower(term) + "%"
	clauses := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		clauses[i] = "LOWER(" + col + ") LIKE ?"
		args[i] = pattern
	}
	return query.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

// applyPaging adds ORDER BY, LIMIT and OFFSET using a whitelisted sort column.
func applyPaging(query *gorm.DB, f shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	f = f.Normalize()
	field := ValidateSortField(f.OrderBy, allowed, defaultField)
	return query.
		Order(field + " " + ValidateSortOrder(f.OrderDir)).
		Order("id").
		Limit(f.PageSize).
		Offset(f.Offset())
}
