package erp

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// loginRequest is the service-layer login payload
type loginRequest struct {
	CompanyDB string `json:"CompanyDB"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
}

// loginResponse carries the session handle returned by a login
type loginResponse struct {
	SessionID      string `json:"SessionId"`
	SessionTimeout int    `json:"SessionTimeout"` // minutes
}

// errorResponse is the service-layer error envelope
type errorResponse struct {
	Error struct {
		Code    interface{} `json:"code"`
		Message struct {
			Value string `json:"value"`
		} `json:"message"`
	} `json:"error"`
}

// PostResult identifies a document created in the ERP
type PostResult struct {
	ExternalID     string
	ExternalNumber string
}

// postedDocument is the subset of the creation response the client needs
type postedDocument struct {
	DocEntry int64 `json:"DocEntry"`
	DocNum   int64 `json:"DocNum"`
}

// BatchAllocation names a batch and quantity on an outgoing document line
type BatchAllocation struct {
	BatchNumber string          `json:"BatchNumber"`
	Quantity    decimal.Decimal `json:"Quantity"`
	ExpiryDate  *string         `json:"ExpiryDate,omitempty"`
}

// DocumentLine is one line of a document posted to the ERP
type DocumentLine struct {
	ItemCode          string            `json:"ItemCode"`
	Quantity          decimal.Decimal   `json:"Quantity"`
	WarehouseCode     string            `json:"WarehouseCode,omitempty"`
	FromWarehouseCode string            `json:"FromWarehouseCode,omitempty"`
	BatchNumbers      []BatchAllocation `json:"BatchNumbers,omitempty"`
}

// Document is the payload for creating a document in the ERP
type Document struct {
	CardCode      string         `json:"CardCode,omitempty"`
	DocDate       string         `json:"DocDate"`
	Comments      string         `json:"Comments,omitempty"`
	Reference     string         `json:"U_Reference,omitempty"`
	DocumentLines []DocumentLine `json:"DocumentLines"`
}

// FetchedBatch is a batch allocation reported on a fetched document line
type FetchedBatch struct {
	BatchNumber string          `json:"BatchNumber"`
	Quantity    decimal.Decimal `json:"Quantity"`
	ExpiryDate  string          `json:"ExpiryDate"`
}

// FetchedLine is one line of a document read back from the ERP
type FetchedLine struct {
	LineNum           int             `json:"LineNum"`
	ItemCode          string          `json:"ItemCode"`
	ItemDescription   string          `json:"ItemDescription"`
	Quantity          decimal.Decimal `json:"Quantity"`
	WarehouseCode     string          `json:"WarehouseCode"`
	FromWarehouseCode string          `json:"FromWarehouseCode"`
	BatchNumbers      []FetchedBatch  `json:"BatchNumbers"`
}

// FetchedDocument is a document read back from the ERP during reconciliation
type FetchedDocument struct {
	DocEntry      int64         `json:"DocEntry"`
	DocNum        int64         `json:"DocNum"`
	DocDate       string        `json:"DocDate"`
	CardCode      string        `json:"CardCode"`
	Comments      string        `json:"Comments"`
	Reference     string        `json:"U_Reference"`
	DocumentLines []FetchedLine `json:"DocumentLines"`
}

// ExternalID returns the document's stable ERP identifier as a string
func (d *FetchedDocument) ExternalID() string {
	return strconv.FormatInt(d.DocEntry, 10)
}

// ParsedDocDate parses the ERP date format, accepting both the bare and
// timestamped forms the service layer emits
func (d *FetchedDocument) ParsedDocDate() (time.Time, error) {
	if t, err := time.Parse("2006-01-02", d.DocDate); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, d.DocDate)
}

// queryPage is one page of an OData-style collection response. Entries
// stay raw so the same pagination loop serves documents and query rows.
type queryPage struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"odata.nextLink"`
}

// sqlQueryDefinition is a stored query on the service layer
type sqlQueryDefinition struct {
	Code string `json:"SqlCode"`
	Name string `json:"SqlName"`
	Text string `json:"SqlText"`
}
