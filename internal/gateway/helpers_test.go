package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/txgw/internal/auth"
	"github.com/vyrodovalexey/txgw/internal/cache"
	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// backends fakes the authentication and transaction services.
type backends struct {
	auth        *httptest.Server
	tx          *httptest.Server
	verifyCalls atomic.Int32
	txCalls     atomic.Int32

	mu       sync.Mutex
	lastTx   map[string]any
	lastPath string
	lastAuth string
}

func (b *backends) lastTransaction() (string, string, map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPath, b.lastAuth, b.lastTx
}

func newBackends(t *testing.T) *backends {
	t.Helper()
	b := &backends{}

	authMux := http.NewServeMux()
	authMux.HandleFunc("POST /verify", func(w http.ResponseWriter, r *http.Request) {
		b.verifyCalls.Add(1)
		var body struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch body.Token {
		case "tok1":
			_, _ = io.WriteString(w, `{"user":"fake-user"}`)
		case "tok1-refreshed":
			_, _ = io.WriteString(w, `{"user":"fake-user"}`)
		case "tok2":
			_, _ = io.WriteString(w, `{"user":"other-user"}`)
		case "numeric":
			_, _ = io.WriteString(w, `{"user_id":42}`)
		case "auth-down":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"detail":"auth storage unavailable"}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Invalid or expired token"}`)
		}
	})
	authMux.HandleFunc("GET /healthz/ready", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	authMux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("username") == "bob" && r.PostForm.Get("password") == "secret" {
			_, _ = io.WriteString(w, `{"access_token":"tok1"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Incorrect username or password"}`)
	})
	authMux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body["username"] == "taken" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"Username already registered"}`)
			return
		}
		_, hasFirst := body["first_name"]
		_ = json.NewEncoder(w).Encode(map[string]any{"username": body["username"], "has_first_name": hasFirst})
	})

	txHandler := func(w http.ResponseWriter, r *http.Request) {
		b.txCalls.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.lastTx, b.lastPath, b.lastAuth = body, r.URL.Path, r.Header.Get("Authorization")
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/report/") {
			_, _ = io.WriteString(w, `{"transactions":[]}`)
			return
		}
		switch body["amount"] {
		case 999.0:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"Insufficient funds"}`)
		case 500.0:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"detail":{"code":"ledger_error","retry":false}}`)
		case 302.0:
			w.Header().Set("Location", "/elsewhere")
			w.WriteHeader(http.StatusFound)
		default:
			_, _ = io.WriteString(w, `{"transaction":"created"}`)
		}
	}
	txMux := http.NewServeMux()
	txMux.HandleFunc("POST /transactions/", txHandler)
	txMux.HandleFunc("POST /transactions/report/", txHandler)

	b.auth = httptest.NewServer(authMux)
	b.tx = httptest.NewServer(txMux)
	t.Cleanup(b.auth.Close)
	t.Cleanup(b.tx.Close)
	return b
}

func (b *backends) delegate() *auth.Delegate {
	return auth.NewDelegate(upstream.NewClient(ServiceAuth, b.auth.URL, time.Second), nil)
}

func (b *backends) txClient() *upstream.Client {
	return upstream.NewClient(ServiceTransactions, b.tx.URL, time.Second)
}

func newMemoryResponseCache(t *testing.T, ttl time.Duration, clock *fakeClock) *cache.ResponseCache {
	t.Helper()
	store, err := cache.New(&config.CacheConfig{
		Enabled:    true,
		Type:       config.CacheTypeMemory,
		TTL:        config.Duration(time.Hour),
		MaxEntries: 100,
	}, nil)
	require.NoError(t, err)
	rc := cache.NewResponseCache(store, ttl, cache.WithClock(clock.Now))
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

// newTestRouter wires a router to fresh fake backends with an in-memory
// cache whose freshness follows the returned clock.
func newTestRouter(t *testing.T, opts ...RouterOption) (*Router, *backends, *fakeClock) {
	t.Helper()
	b := newBackends(t)
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]RouterOption{WithCache(newMemoryResponseCache(t, time.Minute, clock))}, opts...)
	return NewRouter(b.delegate(), b.txClient(), opts...), b, clock
}

func postJSON(h http.Handler, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
