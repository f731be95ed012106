package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"Simple Path", "/products"},
		{"Query String", "/products?category=shoes&page=2"},
		{"Long Path", "/orders/" + strings.Repeat("a", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key1 := getCacheKey(http.MethodGet, tt.uri)
			key2 := getCacheKey(http.MethodGet, tt.uri)

			// 1. Deterministic
			if key1 != key2 {
				t.Errorf("getCacheKey not deterministic: %s != %s", key1, key2)
			}

			// 2. Format
			if !strings.HasPrefix(key1, cacheKeyPrefix) {
				t.Errorf("Key missing prefix: %s", key1)
			}

			// 3. Length (prefix + 64 hex chars)
			expectedLen := len(cacheKeyPrefix) + 64
			if len(key1) != expectedLen {
				t.Errorf("Key length wrong: got %d, want %d", len(key1), expectedLen)
			}
		})
	}
}

func TestCacheKeyDistinguishesRequests(t *testing.T) {
	if getCacheKey(http.MethodGet, "/products?page=1") == getCacheKey(http.MethodGet, "/products?page=2") {
		t.Error("query string ignored")
	}
	if getCacheKey(http.MethodGet, "/products") == getCacheKey(http.MethodHead, "/products") {
		t.Error("method ignored")
	}
}

func TestCacheKeyFormat(t *testing.T) {
	hash := sha256.Sum256([]byte("GET /categories"))
	expected := cacheKeyPrefix + hex.EncodeToString(hash[:])
	if actual := getCacheKey(http.MethodGet, "/categories"); actual != expected {
		t.Errorf("got %s want %s", actual, expected)
	}
}

func TestDisabledCachePassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var rc *responseCache
	if _, err := rc.get(context.Background(), "k"); !errors.Is(err, errCacheDisabled) {
		t.Fatalf("expected errCacheDisabled, got %v", err)
	}
	rc.store(context.Background(), "k", "application/json", []byte("{}"))
	rc.close()

	calls := 0
	r := gin.New()
	r.GET("/products", CacheMiddleware(newResponseCache(nil, 0)), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "fresh")
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
		if w.Body.String() != "fresh" {
			t.Fatalf("unexpected body %q", w.Body.String())
		}
		if h := w.Header().Get("X-Cache"); h != "" {
			t.Fatalf("disabled cache set X-Cache=%q", h)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", calls)
	}
}

func TestHasCredentials(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   bool
	}{
		{"Anonymous", http.Header{"Accept": {"application/json"}}, false},
		{"Bearer Token", http.Header{"Authorization": {"Bearer alice"}}, true},
		{"Session Cookie", http.Header{"Cookie": {"session=alice"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasCredentials(tt.header))
		})
	}
}

func TestSharable(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   bool
	}{
		{"No Headers", http.Header{}, true},
		{"Public Max Age", http.Header{"Cache-Control": {"public, max-age=60"}}, true},
		{"Private", http.Header{"Cache-Control": {"private, max-age=60"}}, false},
		{"No Store", http.Header{"Cache-Control": {"No-Store"}}, false},
		{"No Cache With Field", http.Header{"Cache-Control": {`max-age=0, no-cache="Set-Cookie"`}}, false},
		{"Second Header Line", http.Header{"Cache-Control": {"max-age=60", "private"}}, false},
		{"Sets Cookie", http.Header{"Set-Cookie": {"session=alice"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sharable(tt.header))
		})
	}
}

// Credentialed requests never reach Redis, so an unreachable client is enough.
func TestCredentialedRequestsBypassCache(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rc := newResponseCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), time.Minute)
	defer rc.close()

	calls := 0
	r := gin.New()
	r.GET("/orders", CacheMiddleware(rc), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "orders for "+c.GetHeader("Authorization")+c.GetHeader("Cookie"))
	})

	for _, h := range []http.Header{
		{"Authorization": {"Bearer alice"}},
		{"Cookie": {"session=bob"}},
	} {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header = h
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, calls)
}
