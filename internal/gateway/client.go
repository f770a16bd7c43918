// Package gateway issues cart mutations against the platform's JSON endpoints
// and maps every failure onto a typed outcome. It never touches the page.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/config"
	"github.com/fjod/go_cart/cart-drawer/internal/domain"
)

// SessionCookie names the platform's cart session cookie.
const SessionCookie = "cart"

// StatusUnavailable is the platform status for an item that can no longer be
// purchased.
const StatusUnavailable = http.StatusUnprocessableEntity

type Client struct {
	baseURL  string
	pagePath string
	routes   config.Routes
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	events   *Bus
	logger   *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default cookie-aware, instrumented client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithBus(b *Bus) Option {
	return func(c *Client) { c.events = b }
}

func New(cfg config.Engine, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:  strings.TrimRight(cfg.StorefrontURL, "/"),
		pagePath: cfg.PagePath,
		routes:   cfg.Routes,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = NewBus()
	}
	if c.http == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http = &http.Client{
			Jar:       jar,
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	if cfg.Session != "" {
		if err := c.resume(cfg.Session); err != nil {
			return nil, err
		}
	}

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "cart-gateway",
		Timeout: cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c, nil
}

func (c *Client) Events() *Bus {
	return c.events
}

func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// resume seeds the cookie jar with an existing cart session.
func (c *Client) resume(token string) error {
	if c.http.Jar == nil {
		return errors.New("resuming a cart session requires a cookie jar")
	}
	u, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return fmt.Errorf("parse storefront url: %w", err)
	}
	c.http.Jar.SetCookies(u, []*http.Cookie{{Name: SessionCookie, Value: token, Path: "/"}})
	return nil
}

// Session returns the cart session token held for the storefront, if any.
func (c *Client) Session() string {
	if c.http.Jar == nil {
		return ""
	}
	u, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

type requestBody struct {
	Line        int              `json:"line,omitempty"`
	ID          string           `json:"id,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Items       []domain.AddItem `json:"items,omitempty"`
	Updates     map[string]int   `json:"updates,omitempty"`
	SellingPlan string           `json:"selling_plan,omitempty"`
	Sections    []string         `json:"sections"`
	SectionsURL string           `json:"sections_url"`
}

type responseBody struct {
	domain.CartSnapshot
	Status      json.RawMessage `json:"status,omitempty"`
	Message     string          `json:"message,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) route(kind domain.MutationKind) (string, error) {
	switch kind {
	case domain.MutationChange:
		return c.routes.Change, nil
	case domain.MutationAdd:
		return c.routes.Add, nil
	case domain.MutationBulkUpdate:
		return c.routes.Update, nil
	}
	return "", fmt.Errorf("unknown mutation kind %d", kind)
}

// Submit sends one mutation and returns the resulting snapshot. Failures are
// returned as *Error and never retried. Every completed call is published on
// the event bus.
func (c *Client) Submit(ctx context.Context, req domain.MutationRequest) (*domain.CartSnapshot, error) {
	snapshot, err := c.submit(ctx, req)
	c.events.Publish(Event{Request: req, Snapshot: snapshot, Err: err})
	return snapshot, err
}

func (c *Client) submit(ctx context.Context, req domain.MutationRequest) (*domain.CartSnapshot, error) {
	route, err := c.route(req.Kind)
	if err != nil {
		return nil, err
	}
	sections := req.Sections
	if sections == nil {
		sections = []string{}
	}
	body, err := json.Marshal(requestBody{
		Line:        req.Line,
		ID:          req.ID,
		Quantity:    req.Quantity,
		Items:       req.Items,
		Updates:     req.Updates,
		SellingPlan: req.SellingPlan,
		Sections:    sections,
		SectionsURL: c.pagePath,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", req.Kind, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: domain.TransportError, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, req.Kind.String())
}

// Cart fetches the current cart without mutating it.
func (c *Client) Cart(ctx context.Context) (*domain.CartSnapshot, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.routes.Cart, nil)
	if err != nil {
		return nil, &Error{Kind: domain.TransportError, Err: err}
	}
	return c.do(httpReq, "cart")
}

// FetchPage loads the storefront page that hosts the drawer. It shares the
// cookie jar with mutations, so the page shows the same cart session.
func (c *Client) FetchPage(ctx context.Context) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.pagePath, nil)
	if err != nil {
		return nil, &Error{Kind: domain.TransportError, Err: err}
	}
	httpReq.Header.Set("Accept", "text/html")
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(httpReq)
	})
	if err != nil {
		return nil, &Error{Kind: domain.TransportError, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: domain.TransportError, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: domain.TransportError, Status: resp.StatusCode, Err: fmt.Errorf("page returned %s", resp.Status)}
	}
	return body, nil
}

func (c *Client) do(httpReq *http.Request, verb string) (*domain.CartSnapshot, error) {
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	httpReq.Header.Set("X-Request-ID", requestID)
	log := c.logger.With(zap.String("verb", verb), zap.String("request_id", requestID))

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(httpReq)
	})
	if err != nil {
		log.Error("cart request failed", zap.Error(err))
		return nil, &Error{Kind: domain.TransportError, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("read cart response failed", zap.Error(err))
		return nil, &Error{Kind: domain.TransportError, Status: resp.StatusCode, Err: err}
	}

	var decoded responseBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &Error{Kind: domain.ValidationError, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		log.Error("malformed cart response", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, &Error{Kind: domain.TransportError, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	status := resp.StatusCode
	if bodyStatus := decoded.statusCode(); bodyStatus != 0 {
		status = bodyStatus
	}

	switch {
	case decoded.HasErrors():
		log.Info("cart rejected mutation", zap.Int("status", status))
		return nil, &Error{Kind: domain.ValidationError, Status: status, Message: decoded.ErrorMessage()}
	case status == StatusUnavailable:
		log.Info("item unavailable", zap.String("message", decoded.Message))
		return nil, &Error{Kind: domain.UnavailableError, Status: status, Message: decoded.message()}
	case status >= http.StatusBadRequest:
		log.Info("cart rejected mutation", zap.Int("status", status))
		return nil, &Error{Kind: domain.ValidationError, Status: status, Message: decoded.message()}
	}

	log.Debug("cart request completed", zap.Int("item_count", decoded.ItemCount))
	snapshot := decoded.CartSnapshot
	return &snapshot, nil
}

// statusCode reads a numeric status from the body; the platform sends it
// alongside the HTTP status on failures.
func (r *responseBody) statusCode() int {
	if len(r.Status) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(r.Status, &n); err != nil {
		return 0
	}
	return n
}

func (r *responseBody) message() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Message
}

// IsUnavailable reports whether err is an UnavailableError.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
