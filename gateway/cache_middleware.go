package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CacheMiddleware implements cache-aside for upstream GET responses. The
// cache is shared between users, so requests carrying credentials bypass it
// and only 200 responses a shared cache may keep are stored.
func CacheMiddleware(rc *responseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rc.enabled() || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		if hasCredentials(c.Request.Header) {
			c.Set("cache", "bypass")
			c.Next()
			return
		}

		cacheKey := getCacheKey(c.Request.Method, c.Request.URL.RequestURI())

		cached, err := rc.get(c.Request.Context(), cacheKey)
		if err == nil {
			c.Set("cache", "hit")
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, cached.ContentType, cached.Body)
			c.Abort()
			return
		}
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", shortKey(cacheKey)).Msg("cache lookup failed")
		}

		c.Set("cache", "miss")
		c.Header("X-Cache", "MISS")

		writer := &cacheResponseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer

		c.Next()

		body, contentType, ok := writer.successful()
		if !ok {
			return
		}
		// The request context is done once the handler returns.
		go rc.store(context.Background(), cacheKey, contentType, body)
	}
}

// cacheResponseWriter wraps gin.ResponseWriter to capture the body.
type cacheResponseWriter struct {
	gin.ResponseWriter
	mu   sync.Mutex
	body *bytes.Buffer
}

func (w *cacheResponseWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	w.body.Write(data)
	w.mu.Unlock()
	return w.ResponseWriter.Write(data)
}

func (w *cacheResponseWriter) WriteString(s string) (int, error) {
	w.mu.Lock()
	w.body.WriteString(s)
	w.mu.Unlock()
	return w.ResponseWriter.WriteString(s)
}

// successful returns a copy of the captured body if the response was a 200
// that may be shared.
func (w *cacheResponseWriter) successful() ([]byte, string, bool) {
	if w.Status() != http.StatusOK || !sharable(w.Header()) {
		return nil, "", false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	body := bytes.Clone(w.body.Bytes())
	return body, w.Header().Get("Content-Type"), true
}

func hasCredentials(h http.Header) bool {
	return h.Get("Authorization") != "" || h.Get("Cookie") != ""
}

// sharable reports whether response headers let a shared cache keep the body.
func sharable(h http.Header) bool {
	if len(h.Values("Set-Cookie")) > 0 {
		return false
	}
	for _, v := range h.Values("Cache-Control") {
		for _, directive := range strings.Split(v, ",") {
			name, _, _ := strings.Cut(strings.TrimSpace(directive), "=")
			switch strings.ToLower(name) {
			case "private", "no-store", "no-cache":
				return false
			}
		}
	}
	return true
}
