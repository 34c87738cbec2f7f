package persistence

import (
	"strings"
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

// LotSortFields contains allowed sort fields for lots
var LotSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"batch_number": true,
	"expiry_date":  true,
	"status":       true,
	"available":    true,
	"total":        true,
}

// OperationSortFields contains allowed sort fields for operations
var OperationSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"kind":             true,
	"occurred_at":      true,
	"sync_state":       true,
	"sync_retry_count": true,
}

// ExternalDocumentSortFields contains allowed sort fields for external documents
var ExternalDocumentSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"external_id": true,
	"doc_type":    true,
	"doc_number":  true,
	"doc_date":    true,
	"status":      true,
}

// ReconciliationRunSortFields contains allowed sort fields for reconciliation runs
var ReconciliationRunSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"window_from": true,
	"window_to":   true,
	"status":      true,
	"started_at":  true,
}

// CatalogSortFields contains allowed sort fields for products and locations
var CatalogSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"code":       true,
	"name":       true,
}
