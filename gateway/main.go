package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"busygate/gateway/busy"
	"busygate/gateway/interceptor"
	"busygate/gateway/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

/* -------------------- Main -------------------- */

func main() {
	_ = godotenv.Load("../.env")

	// Init structured logging
	middleware.InitLogger()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
}

// gateway bundles what the router needs.
type gateway struct {
	coord    *busy.Coordinator
	routes   *interceptor.RouteHook
	tracker  *requestTracker
	cache    *responseCache
	registry *prometheus.Registry
	cfg      Config

	// streams ends open event streams, which would otherwise hold up shutdown.
	streams     context.Context
	stopStreams context.CancelFunc
}

func newGateway(cfg Config, cache *responseCache) (*gateway, error) {
	registry := prometheus.NewRegistry()
	metrics, err := busy.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	coord := busy.New(busy.Config{
		MinVisible:      cfg.BusyMinVisible,
		WatchdogTimeout: cfg.BusyWatchdog,
		Metrics:         metrics,
	})
	routes := interceptor.NewRouteHook(coord)
	streams, stopStreams := context.WithCancel(context.Background())

	return &gateway{
		coord:    coord,
		routes:   routes,
		tracker:  newRequestTracker(routes),
		cache:    cache,
		registry: registry,
		cfg:      cfg,

		streams:     streams,
		stopStreams: stopStreams,
	}, nil
}

func (g *gateway) router(upstream http.RoundTripper) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(),
	)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     g.cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Cache", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	r.GET("/healthz", handleHealth(g.tracker))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{})))

	// The busy endpoints are not tracked: an open event stream would
	// otherwise keep the indicator up until the watchdog fires.
	b := r.Group("/api/busy")
	b.GET("", handleBusyState(g.coord))
	b.GET("/events", handleBusyEvents(g.coord, g.streams.Done()))
	b.POST("/reset", handleBusyReset(g.coord))
	b.POST("/navigate", handleNavigate(g.routes))

	proxy := newUpstreamProxy(g.cfg.UpstreamURL, upstream, g.coord)
	api := r.Group(apiPrefix, g.tracker.TrackInFlightRequests(), CacheMiddleware(g.cache))
	api.Any("/*path", handleUpstream(proxy))

	return r
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg Config) error {
	cache := newResponseCache(initRedis(cfg), cfg.CacheTTL)
	defer cache.close()

	gw, err := newGateway(cfg, cache)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gw.router(http.DefaultTransport),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(gw.stopStreams)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("port", cfg.Port).
			Str("upstream", cfg.UpstreamURL.String()).
			Msg("gateway running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if waitErr := gw.tracker.Wait(shutdownCtx); waitErr != nil {
			log.Warn().
				Int64("active_requests", gw.tracker.ActiveRequests()).
				Msg("shutdown timed out with requests in flight")
		}
		gw.coord.Reset()
		return err
	})

	return g.Wait()
}
