package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/franckalain/nutriscan/internal/logger"
	"github.com/franckalain/nutriscan/internal/models"
)

const DefaultBaseURL = "https://world.openfoodfacts.org/api/v2"

// Client looks products up in the Open Food Facts database. Every call
// returns a LookupResult; nothing is retried.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        logger.ILogger
	tracer     trace.Tracer
}

// maxResponseBytes caps how much of a product response is read.
const maxResponseBytes = 4 << 20

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for the product service at baseURL. Each request
// is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, log logger.ILogger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Client{
		baseURL:    baseURL,
		userAgent:  "nutriscan/1.0",
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		tracer:     otel.Tracer("github.com/franckalain/nutriscan/internal/lookup"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches {base}/product/{barcode}.json and normalizes the outcome.
func (c *Client) Lookup(ctx context.Context, code models.Barcode) models.LookupResult {
	ctx, span := c.tracer.Start(ctx, "lookup.Product",
		trace.WithAttributes(attribute.String("barcode", string(code))))
	defer span.End()

	result := c.lookup(ctx, code)

	span.SetAttributes(attribute.String("lookup.status", string(result.Status)))
	if result.Status == models.LookupTransportError || result.Status == models.LookupRequestError {
		span.SetStatus(codes.Error, result.Message)
	}
	return result
}

func (c *Client) lookup(ctx context.Context, code models.Barcode) models.LookupResult {
	apiURL, err := c.productURL(code)
	if err != nil {
		c.log.Error("lookup", "invalid product URL", map[string]interface{}{"barcode": code, "error": err})
		return models.RequestError(fmt.Sprintf("error setting up API request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		c.log.Error("lookup", "failed to build request", map[string]interface{}{"url": apiURL, "error": err})
		return models.RequestError(fmt.Sprintf("error setting up API request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debug("lookup", "fetching product info", map[string]interface{}{"url": apiURL})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("lookup", "no response from product service", map[string]interface{}{"url": apiURL, "error": err.Error()})
		return models.TransportError(fmt.Sprintf("network error or no response from server: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.log.Warn("lookup", "failed to read response body", map[string]interface{}{"url": apiURL, "error": err.Error()})
		return models.TransportError(fmt.Sprintf("failed to read response: %v", err))
	}

	// The service reports unknown products both in-body and through HTTP
	// error statuses; both resolve to not found.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Info("lookup", "product service returned error status", map[string]interface{}{
			"barcode": code,
			"status":  resp.StatusCode,
			"body":    truncate(string(body), 200),
		})
		return models.SoftNotFound(code, resp.StatusCode)
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		c.log.Warn("lookup", "invalid response payload", map[string]interface{}{"barcode": code, "error": err.Error()})
		return models.TransportError(fmt.Sprintf("invalid response payload: %v", err))
	}

	if payload.Status != 1 || payload.Product == nil {
		c.log.Info("lookup", "product not found", map[string]interface{}{
			"barcode":        code,
			"status_verbose": payload.StatusVerbose,
		})
		return models.NotFound(code, payload.StatusVerbose)
	}

	productCode := code
	if strings.TrimSpace(payload.Code) != "" {
		productCode = models.Barcode(payload.Code)
	}
	info := toProductInfo(productCode, payload.Product)
	c.log.Info("lookup", "product found", map[string]interface{}{"barcode": code, "name": info.DisplayName()})
	return models.Found(info)
}

func (c *Client) productURL(code models.Barcode) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.baseURL, "/"))
	if err != nil {
		return "", err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return "", fmt.Errorf("missing host in %q", c.baseURL)
	}
	return base.String() + "/product/" + url.PathEscape(string(code)) + ".json", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
