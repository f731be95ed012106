package main

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"busygate/gateway/busy"
	"busygate/gateway/interceptor"
)

const apiPrefix = "/api/v1"

// newUpstreamProxy forwards /api/v1/* to the REST API at target. Every
// outgoing call is reported to tracker.
func newUpstreamProxy(target *url.URL, base http.RoundTripper, tracker busy.Tracker) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			path := strings.TrimPrefix(pr.In.URL.Path, apiPrefix)
			if path == "" {
				path = "/"
			}
			pr.Out.URL.Path = path
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: &interceptor.Transport{Base: base, Tracker: tracker},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error().
				Err(err).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("upstream request failed")
			writeJSONError(w, http.StatusBadGateway, "upstream unavailable")
		},
	}
}

func handleUpstream(proxy *httputil.ReverseProxy) gin.HandlerFunc {
	return func(c *gin.Context) {
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
