package erp

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// resource paths for the tracked document collections
const (
	resourceGoodsReceipts  = "InventoryGenEntries"
	resourceStockTransfers = "StockTransfers"
	resourceDeliveryNotes  = "DeliveryNotes"
	resourceSQLQueries     = "SQLQueries"
)

const erpDateLayout = "2006-01-02"

// escapeFilterValue makes a string safe for embedding in an OData filter
// literal. Single quotes are doubled per the OData escaping rule; control
// characters are dropped outright.
func escapeFilterValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch {
		case r == '\'':
			b.WriteString("''")
		case r < 0x20 || r == 0x7f:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// validateFilterValue checks an input against the allow-listed character
// set for values interpolated into filter and query expressions
func validateFilterValue(v string) error {
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(" -_.,:/'", r):
		default:
			return fmt.Errorf("erp: character %q not allowed in filter value", r)
		}
	}
	return nil
}

// sanitizeFilterValue validates a filter input and escapes it for
// interpolation. Rejection beats silent stripping: a value outside the
// allow-list is a caller bug or an injection attempt, not data to clean up.
func sanitizeFilterValue(v string) (string, error) {
	if err := validateFilterValue(v); err != nil {
		return "", err
	}
	return escapeFilterValue(v), nil
}

// validateQueryCode checks a stored-query identifier. Codes name service
// layer resources in the URL path, so only identifier characters pass.
func validateQueryCode(code string) error {
	if code == "" {
		return fmt.Errorf("erp: query code is required")
	}
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("erp: character %q not allowed in query code", r)
		}
	}
	return nil
}

// itemCodeFilter builds the server-side line filter restricting a document
// fetch to tracked item codes. Empty input yields no filter.
func itemCodeFilter(codes []string) (string, error) {
	if len(codes) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(codes))
	for _, code := range codes {
		safe, err := sanitizeFilterValue(code)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, fmt.Sprintf("line/ItemCode eq '%s'", safe))
	}
	return "DocumentLines/any(line: " + strings.Join(clauses, " or ") + ")", nil
}

// dateWindowFilter builds the server-side DocDate filter for a scan window.
// DocDate has day granularity in the ERP, so the window is widened to whole
// days; the caller re-checks exact bounds client-side.
func dateWindowFilter(from, to time.Time) string {
	return fmt.Sprintf("DocDate ge '%s' and DocDate le '%s'",
		from.Format(erpDateLayout), to.Format(erpDateLayout))
}

// collectionPath builds the first-page query URL path for a resource
func collectionPath(resource, filter string, pageSize int) string {
	q := url.Values{}
	q.Set("$orderby", "DocEntry")
	if filter != "" {
		q.Set("$filter", filter)
	}
	if pageSize > 0 {
		q.Set("$top", fmt.Sprintf("%d", pageSize))
	}
	return "/" + resource + "?" + q.Encode()
}
