// Package gateway talks to the remote post collection. It returns raw records; merging with local
// interaction data happens in the feed engine.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"postsync/internal/config"
	"postsync/internal/models"
	"postsync/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// DefaultPageLimit is the single page size used for List.
const DefaultPageLimit = 1000

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// CreateRequest is the body of a create. Images are never sent.
type CreateRequest struct {
	Username string `json:"username"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// UpdateRequest is the body of a partial update. A nil ImageURL omits the field; a pointer to ""
// sends an explicit clear.
type UpdateRequest struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

// Gateway is the Remote Post Gateway.
type Gateway struct {
	baseURL   string
	client    *http.Client
	pageLimit int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default client, e.g. to route requests to an in-process app.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithPageLimit sets the List page size.
func WithPageLimit(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.pageLimit = n
		}
	}
}

// New creates a Gateway for the collection at baseURL.
func New(baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:   EnsureTrailingSlash(baseURL),
		client:    &http.Client{},
		pageLimit: DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromConfig creates a Gateway from application configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) *Gateway {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout()}),
		WithPageLimit(cfg.APIPageLimit),
	}
	return New(cfg.APIBaseURL, append(base, opts...)...)
}

// BaseURL returns the normalized collection URL.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// EnsureTrailingSlash appends "/" unless url already ends with one.
func EnsureTrailingSlash(url string) string {
	if strings.HasSuffix(url, "/") {
		return url
	}
	return url + "/"
}

// BuildURL joins base and path. The result always ends with "/"; a leading "/" on path is dropped.
func BuildURL(base, path string) string {
	base = EnsureTrailingSlash(base)
	if path == "" {
		return base
	}
	return base + EnsureTrailingSlash(strings.TrimPrefix(path, "/"))
}

func (g *Gateway) itemURL(id int) string {
	return BuildURL(g.baseURL, strconv.Itoa(id))
}

type listResponse struct {
	Results *[]models.RemotePost `json:"results"`
}

// List fetches the whole collection as one page. Transport failures, non-2xx statuses and invalid
// JSON are NETWORK_ERROR. A JSON payload without a results array is MALFORMED_RESPONSE.
func (g *Gateway) List(ctx context.Context) ([]models.RemotePost, error) {
	url := fmt.Sprintf("%s?limit=%d&offset=0", g.baseURL, g.pageLimit)

	body, status, err := g.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewNetworkError("Failed to fetch posts", err)
	}
	if !ok(status) {
		return nil, models.NewNetworkError(
			fmt.Sprintf("Failed to fetch posts: %d %s", status, http.StatusText(status)), nil)
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, models.NewNetworkError("Failed to fetch posts: invalid JSON", err)
	}
	var payload listResponse
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Results == nil {
		return nil, models.NewMalformedResponseError("Unexpected API response structure")
	}
	return *payload.Results, nil
}

// Create posts a new record and returns what the collection stored.
func (g *Gateway) Create(ctx context.Context, req CreateRequest) (models.RemotePost, error) {
	return g.write(ctx, http.MethodPost, g.baseURL, req, "create")
}

// Update patches a record and returns the updated record.
func (g *Gateway) Update(ctx context.Context, id int, req UpdateRequest) (models.RemotePost, error) {
	return g.write(ctx, http.MethodPatch, g.itemURL(id), req, "update")
}

// Delete removes a record.
func (g *Gateway) Delete(ctx context.Context, id int) error {
	_, status, err := g.do(ctx, http.MethodDelete, g.itemURL(id), nil)
	if err != nil {
		return models.NewRemoteWriteError("delete", err)
	}
	if !ok(status) {
		return models.NewRemoteWriteError("delete", statusError(status))
	}
	return nil
}

func (g *Gateway) write(ctx context.Context, method, url string, payload any, operation string) (models.RemotePost, error) {
	var post models.RemotePost

	encoded, err := json.Marshal(payload)
	if err != nil {
		return post, models.NewRemoteWriteError(operation, err)
	}
	body, status, err := g.do(ctx, method, url, encoded)
	if err != nil {
		return post, models.NewRemoteWriteError(operation, err)
	}
	if !ok(status) {
		return post, models.NewRemoteWriteError(operation, statusError(status))
	}
	if err := json.Unmarshal(body, &post); err != nil {
		return post, models.NewRemoteWriteError(operation, fmt.Errorf("decode response: %w", err))
	}
	return post, nil
}

// do sends one request and returns the response body and status. A transport failure returns err;
// a non-2xx status does not.
func (g *Gateway) do(ctx context.Context, method, url string, payload []byte) ([]byte, int, error) {
	span, ctx := observability.TraceGatewayRequest(ctx, method, url)
	defer span.End()
	defer observability.TrackGateway(method)()

	requestID := uuid.NewString()
	ctx = observability.WithRequestID(ctx, requestID)

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		span.SetError(err)
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := g.client.Do(req)
	if err != nil {
		observability.GatewayRequests.WithLabelValues(method, StatusClassFor(err)).Inc()
		span.SetError(err)
		if !errors.Is(err, context.Canceled) {
			observability.Logger.WarnContext(ctx, "gateway request failed",
				slog.String("method", method),
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
		}
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	observability.GatewayRequests.WithLabelValues(method, observability.StatusClass(resp.StatusCode)).Inc()
	span.AddAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		span.SetError(err)
		return nil, resp.StatusCode, err
	}

	observability.Logger.DebugContext(ctx, "gateway request",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)
	if !ok(resp.StatusCode) {
		span.SetError(fmt.Errorf("%w: %s", statusError(resp.StatusCode), truncate(body)))
	}
	return body, resp.StatusCode, nil
}

// StatusClassFor labels a transport failure for metrics.
func StatusClassFor(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

func statusError(status int) error {
	return fmt.Errorf("unexpected status %d %s", status, http.StatusText(status))
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
