package erp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerlink/backend/internal/domain/reconcile"
	"github.com/ledgerlink/backend/internal/infrastructure/config"
)

// maxResponseSize is the maximum allowed response size from the ERP (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Sentinel errors for ERP failures. ErrTimeout and ErrUnavailable are
// retryable; ErrRejected means the ERP understood the request and refused
// it, so retrying the same payload will not help.
var (
	ErrTimeout         = errors.New("erp: request timed out")
	ErrUnavailable     = errors.New("erp: service unavailable")
	ErrRejected        = errors.New("erp: document rejected")
	ErrAuthFailed      = errors.New("erp: authentication failed")
	ErrInvalidResponse = errors.New("erp: invalid response")
)

// Retryable reports whether the error is transient and worth re-posting
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}

// Client talks to the ERP service layer. Safe for concurrent use: the
// session is established once and shared, with login serialized behind a
// mutex so concurrent callers do not stampede the ERP with logins.
type Client struct {
	cfg        config.ERPConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	sessionID string
}

// NewClient creates an ERP client from configuration
func NewClient(cfg config.ERPConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("erp: base URL is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("erp: credentials are required")
	}

	transport := http.DefaultTransport
	if !cfg.VerifyTLS {
		// Service-layer installations commonly run with self-signed
		// certificates on premise; production config forbids this.
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		cfg:    cfg,
		logger: logger.Named("erp"),
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
	}, nil
}

// PostGoodsReceipt creates a goods receipt document in the ERP
func (c *Client) PostGoodsReceipt(ctx context.Context, doc *Document) (PostResult, error) {
	return c.postDocument(ctx, resourceGoodsReceipts, doc)
}

// PostStockTransfer creates a stock transfer document in the ERP
func (c *Client) PostStockTransfer(ctx context.Context, doc *Document) (PostResult, error) {
	return c.postDocument(ctx, resourceStockTransfers, doc)
}

// PostDelivery creates a delivery note in the ERP
func (c *Client) PostDelivery(ctx context.Context, doc *Document) (PostResult, error) {
	return c.postDocument(ctx, resourceDeliveryNotes, doc)
}

func (c *Client) postDocument(ctx context.Context, resource string, doc *Document) (PostResult, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return PostResult{}, fmt.Errorf("erp: failed to encode document: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/"+resource, payload)
	if err != nil {
		return PostResult{}, err
	}

	var posted postedDocument
	if err := json.Unmarshal(body, &posted); err != nil {
		return PostResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if posted.DocEntry == 0 {
		return PostResult{}, fmt.Errorf("%w: created document carries no DocEntry", ErrInvalidResponse)
	}
	return PostResult{
		ExternalID:     fmt.Sprintf("%d", posted.DocEntry),
		ExternalNumber: fmt.Sprintf("%d", posted.DocNum),
	}, nil
}

// FetchDocuments reads documents of a type whose DocDate falls inside the
// window and whose lines mention one of the product codes, following
// continuation links up to the configured page ceiling. The line filter is
// pushed to the server where supported; when the service layer rejects the
// lambda expression the fetch falls back to the date window alone, and the
// line check below restricts the result either way. The server-side date
// filter has day granularity; exact window bounds are re-checked by the
// caller.
func (c *Client) FetchDocuments(ctx context.Context, docType reconcile.DocType, from, to time.Time, productCodes []string) ([]FetchedDocument, error) {
	resource, err := resourceFor(docType)
	if err != nil {
		return nil, err
	}

	dateFilter := dateWindowFilter(from, to)
	lineFilter, err := itemCodeFilter(productCodes)
	if err != nil {
		return nil, err
	}

	filter := dateFilter
	if lineFilter != "" {
		filter = dateFilter + " and " + lineFilter
	}

	values, err := c.collectPages(ctx, collectionPath(resource, filter, c.cfg.PageSize), resource)
	if lineFilter != "" && errors.Is(err, ErrRejected) {
		c.logger.Warn("line filter rejected by the service layer; retrying with the date window alone",
			zap.String("doc_type", string(docType)),
			zap.Error(err),
		)
		values, err = c.collectPages(ctx, collectionPath(resource, dateFilter, c.cfg.PageSize), resource)
	}
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]struct{}, len(productCodes))
	for _, code := range productCodes {
		tracked[code] = struct{}{}
	}

	docs := make([]FetchedDocument, 0, len(values))
	for _, raw := range values {
		var doc FetchedDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if !mentionsTracked(doc, tracked) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// mentionsTracked reports whether any document line carries a tracked item
// code. An empty set tracks everything.
func mentionsTracked(doc FetchedDocument, tracked map[string]struct{}) bool {
	if len(tracked) == 0 {
		return true
	}
	for _, line := range doc.DocumentLines {
		if _, ok := tracked[line.ItemCode]; ok {
			return true
		}
	}
	return false
}

// RunAdHocQuery stores a SQL query definition under the given code and
// executes it, returning the result rows. The service layer keeps query
// definitions server-side, so the definition is created first and updated
// in place when the code is already taken. Values interpolated into the
// query text must go through sanitizeFilterValue at the call site.
func (c *Client) RunAdHocQuery(ctx context.Context, code, query string) ([]map[string]interface{}, error) {
	if err := validateQueryCode(code); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("erp: query text is required")
	}

	payload, err := json.Marshal(sqlQueryDefinition{Code: code, Name: code, Text: query})
	if err != nil {
		return nil, fmt.Errorf("erp: failed to encode query definition: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPost, "/"+resourceSQLQueries, payload); err != nil {
		if !errors.Is(err, ErrRejected) {
			return nil, err
		}
		// Code already taken: replace the stored definition
		patchPath := fmt.Sprintf("/%s('%s')", resourceSQLQueries, code)
		if _, err := c.do(ctx, http.MethodPatch, patchPath, payload); err != nil {
			return nil, err
		}
	}

	values, err := c.collectPages(ctx, fmt.Sprintf("/%s('%s')/List", resourceSQLQueries, code), resourceSQLQueries)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]interface{}, 0, len(values))
	for _, raw := range values {
		var row map[string]interface{}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// collectPages walks a collection path, following continuation links up to
// the configured page ceiling, and returns the raw entries of every page.
func (c *Client) collectPages(ctx context.Context, path, collection string) ([]json.RawMessage, error) {
	basePath := ""
	if base, err := url.Parse(c.cfg.BaseURL); err == nil {
		basePath = strings.TrimSuffix(base.Path, "/")
	}

	var values []json.RawMessage
	for page := 0; path != ""; page++ {
		if page >= c.cfg.MaxPages {
			c.logger.Warn("fetch hit the page ceiling; result truncated",
				zap.String("collection", collection),
				zap.Int("max_pages", c.cfg.MaxPages),
			)
			break
		}

		body, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var pageResp queryPage
		if err := json.Unmarshal(body, &pageResp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		values = append(values, pageResp.Value...)
		path = continuationPath(pageResp.NextLink, basePath)
	}
	return values, nil
}

func resourceFor(docType reconcile.DocType) (string, error) {
	switch docType {
	case reconcile.DocTypeGoodsReceipt:
		return resourceGoodsReceipts, nil
	case reconcile.DocTypeStockTransfer:
		return resourceStockTransfers, nil
	case reconcile.DocTypeDelivery:
		return resourceDeliveryNotes, nil
	}
	return "", fmt.Errorf("erp: no resource for document type %s", docType)
}

// continuationPath normalizes a service-layer next link to a path relative
// to the base URL. Next links come back both relative and absolute; an
// absolute one repeats the base path, which must not be prefixed twice.
func continuationPath(next, basePath string) string {
	if next == "" {
		return ""
	}
	if u, err := url.Parse(next); err == nil && u.IsAbs() {
		path := strings.TrimPrefix(u.Path, basePath)
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
		next = path
	}
	if !strings.HasPrefix(next, "/") {
		next = "/" + next
	}
	return next
}

// do performs one request against the service layer, establishing a session
// first if needed and re-authenticating once on a 401.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	status, body, err := c.roundTrip(ctx, method, path, payload, sessionID)
	if err != nil {
		return nil, err
	}

	// Session expired mid-call: re-login once and retry
	if status == http.StatusUnauthorized {
		c.invalidateSession(sessionID)
		sessionID, err = c.ensureSession(ctx)
		if err != nil {
			return nil, err
		}
		status, body, err = c.roundTrip(ctx, method, path, payload, sessionID)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case status >= 200 && status < 300:
		return body, nil
	case status >= 500:
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, parseErrorMessage(body, status))
	default:
		return nil, fmt.Errorf("%w: %s", ErrRejected, parseErrorMessage(body, status))
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, sessionID string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("erp: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", "B1SESSION="+sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("erp: failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// ensureSession returns the current session, logging in if none exists.
// Logins are serialized: a caller arriving while another login is in flight
// waits on the mutex and then reuses the fresh session.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID != "" {
		return c.sessionID, nil
	}

	loginCtx, cancel := context.WithTimeout(ctx, c.cfg.LoginTimeout)
	defer cancel()

	payload, err := json.Marshal(loginRequest{
		CompanyDB: c.cfg.CompanyDB,
		UserName:  c.cfg.Username,
		Password:  c.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("erp: failed to encode login: %w", err)
	}

	req, err := http.NewRequestWithContext(loginCtx, http.MethodPost, c.cfg.BaseURL+"/Login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("erp: failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("erp: failed to read login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrAuthFailed, parseErrorMessage(body, resp.StatusCode))
	}

	var login loginResponse
	if err := json.Unmarshal(body, &login); err != nil || login.SessionID == "" {
		return "", fmt.Errorf("%w: login response carries no session", ErrInvalidResponse)
	}

	c.sessionID = login.SessionID
	c.logger.Info("erp session established")
	return c.sessionID, nil
}

// invalidateSession drops the session, but only if it is still the one the
// failed request used; a session refreshed by another caller survives.
func (c *Client) invalidateSession(staleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == staleID {
		c.sessionID = ""
	}
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// parseErrorMessage extracts the human-readable ERP error, falling back to
// the HTTP status when the body is not the expected envelope
func parseErrorMessage(body []byte, status int) string {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message.Value != "" {
		return envelope.Error.Message.Value
	}
	return fmt.Sprintf("HTTP %d", status)
}
