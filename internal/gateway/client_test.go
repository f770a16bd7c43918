package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/cart-drawer/internal/config"
	"github.com/fjod/go_cart/cart-drawer/internal/domain"
)

func setupClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Engine
	cfg.StorefrontURL = srv.URL
	cfg.PagePath = "/products/rose"
	client, err := New(cfg)
	require.NoError(t, err)
	return client, srv
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestSubmit_ChangeRequestShape(t *testing.T) {
	var got map[string]any
	var path, accept string
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		accept = r.Header.Get("Accept")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respond(w, http.StatusOK, `{"item_count":3,"total_price":6000,"items":[{"key":"a:1","id":11,"quantity":3,"product_type":"Perfume"}],"sections":{"cart-drawer":"<div></div>"}}`)
	})

	req := domain.ChangeLine(1, 3)
	req.Sections = []string{"cart-drawer", "cart-icon-bubble"}
	snap, err := client.Submit(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "/cart/change.js", path)
	assert.Equal(t, "application/json", accept)
	assert.Equal(t, float64(1), got["line"])
	assert.Equal(t, float64(3), got["quantity"])
	assert.Equal(t, []any{"cart-drawer", "cart-icon-bubble"}, got["sections"])
	assert.Equal(t, "/products/rose", got["sections_url"])
	assert.NotContains(t, got, "updates")

	assert.Equal(t, 3, snap.ItemCount)
	assert.Equal(t, int64(6000), snap.TotalPrice)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "a:1", snap.Items[0].Key)
	assert.Equal(t, "<div></div>", snap.Sections["cart-drawer"])
}

func TestSubmit_ZeroQuantityIsSent(t *testing.T) {
	var got map[string]any
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respond(w, http.StatusOK, `{"item_count":0,"items":[]}`)
	})

	_, err := client.Submit(context.Background(), domain.MutationRequest{Kind: domain.MutationChange, ID: "42", Quantity: domain.Qty(0)})

	require.NoError(t, err)
	assert.Equal(t, float64(0), got["quantity"])
	assert.Equal(t, "42", got["id"])
	assert.Equal(t, []any{}, got["sections"])
}

func TestSubmit_BulkUpdateRoute(t *testing.T) {
	var path string
	var got map[string]any
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respond(w, http.StatusOK, `{"item_count":1,"items":[]}`)
	})

	_, err := client.Submit(context.Background(), domain.RemoveSamples([]domain.CartLine{{Key: "s:1"}}))

	require.NoError(t, err)
	assert.Equal(t, "/cart/update.js", path)
	assert.Equal(t, map[string]any{"s:1": float64(0)}, got["updates"])
}

func TestSubmit_ErrorsFieldIsValidation(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"errors":"Not enough stock","items":[]}`)
	})

	_, err := client.Submit(context.Background(), domain.ChangeLine(2, 10))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "Not enough stock", MessageOf(err))
}

func TestSubmit_UnavailableStatus(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusUnprocessableEntity, `{"status":422,"message":"Cart Error","description":"Rose Oil is sold out."}`)
	})

	_, err := client.Submit(context.Background(), domain.MutationRequest{
		Kind:  domain.MutationAdd,
		Items: []domain.AddItem{{ID: "7", Quantity: 1}},
	})

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.UnavailableError, kind)
	assert.Equal(t, "Rose Oil is sold out.", MessageOf(err))
}

func TestSubmit_Non2xxIsValidation(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusBadRequest, `{"status":400,"message":"no valid id or line parameter"}`)
	})

	_, err := client.Submit(context.Background(), domain.ChangeLine(9, 1))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "no valid id or line parameter", MessageOf(err))
}

func TestSubmit_TransportError(t *testing.T) {
	client, srv := setupClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.Submit(context.Background(), domain.ChangeLine(1, 1))

	assert.True(t, errors.Is(err, ErrTransport))
}

func TestSubmit_MalformedSuccessBody(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `<html>oops</html>`)
	})

	_, err := client.Submit(context.Background(), domain.ChangeLine(1, 1))

	assert.True(t, errors.Is(err, ErrTransport))
}

func TestSubmit_PublishesEvents(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"item_count":4,"items":[]}`)
	})
	var seen []Event
	unsubscribe := client.Events().Subscribe(func(e Event) { seen = append(seen, e) })

	_, err := client.Submit(context.Background(), domain.ChangeLine(1, 4))
	require.NoError(t, err)
	unsubscribe()
	_, err = client.Submit(context.Background(), domain.ChangeLine(1, 5))
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, 4, seen[0].Snapshot.ItemCount)
	assert.Equal(t, 1, seen[0].Request.Line)
}

func TestSubmit_BreakerOpensAfterTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default().Engine
	cfg.StorefrontURL = srv.URL
	cfg.Breaker = config.Breaker{MaxFailures: 2, OpenTimeout: time.Minute}
	client, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err = client.Submit(context.Background(), domain.ChangeLine(1, 1))
		assert.True(t, errors.Is(err, ErrTransport))
	}
	assert.Equal(t, int32(2), calls.Load(), "open breaker fails fast without calling the platform")
}

func TestCart_Fetch(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart.js", r.URL.Path)
		respond(w, http.StatusOK, `{"item_count":2,"items":[]}`)
	})

	snap, err := client.Cart(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, snap.ItemCount)
}

func TestFetchPage(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/rose", r.URL.Path)
		http.SetCookie(w, &http.Cookie{Name: "cart", Value: "tok", Path: "/"})
		_, _ = w.Write([]byte(`<html><body><cart-drawer></cart-drawer></body></html>`))
	})

	page, err := client.FetchPage(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(page), "<cart-drawer>")
}

func TestFetchPage_SharesSession(t *testing.T) {
	var cookie atomic.Value
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "cart", Value: "tok", Path: "/"})
			_, _ = w.Write([]byte(`<html></html>`))
			return
		}
		if c, err := r.Cookie("cart"); err == nil {
			cookie.Store(c.Value)
		}
		respond(w, http.StatusOK, `{"item_count":0,"items":[]}`)
	})

	_, err := client.FetchPage(context.Background())
	require.NoError(t, err)
	_, err = client.Submit(context.Background(), domain.ChangeLine(1, 0))
	require.NoError(t, err)
	assert.Equal(t, "tok", cookie.Load())
}

func TestFetchPage_NotFound(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.FetchPage(context.Background())
	require.ErrorIs(t, err, ErrTransport)
	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusNotFound, gwErr.Status)
}

func TestSession_ResumedFromConfig(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(SessionCookie); err == nil {
			got.Store(c.Value)
		}
		respond(w, http.StatusOK, `{"item_count":0,"items":[]}`)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default().Engine
	cfg.StorefrontURL = srv.URL
	cfg.Session = "resume-me"
	client, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "resume-me", client.Session())

	_, err = client.Cart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "resume-me", got.Load())
}

func TestSession_IssuedByPlatform(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "fresh", Path: "/"})
		respond(w, http.StatusOK, `{"item_count":0,"items":[]}`)
	})
	assert.Empty(t, client.Session())

	_, err := client.Cart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", client.Session())
}

func TestSession_RequiresJar(t *testing.T) {
	cfg := config.Default().Engine
	cfg.Session = "tok"
	_, err := New(cfg, WithHTTPClient(&http.Client{}))
	assert.Error(t, err)
}
