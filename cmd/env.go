package main

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lureiq/internal/conditions"
	"github.com/sells-group/lureiq/internal/feedback"
	"github.com/sells-group/lureiq/internal/location"
	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/monitoring"
	"github.com/sells-group/lureiq/internal/resilience"
	"github.com/sells-group/lureiq/internal/scorer"
	"github.com/sells-group/lureiq/internal/store"
	"github.com/sells-group/lureiq/pkg/collector"
	"github.com/sells-group/lureiq/pkg/geocode"
	"github.com/sells-group/lureiq/pkg/weather"
	"github.com/sells-group/lureiq/pkg/weights"
)

// appEnv holds the store, clients and feedback machinery shared by the
// recommend, feedback and serve commands.
type appEnv struct {
	Store      store.KV
	Locator    *location.Resolver
	Normalizer *conditions.Normalizer
	Catalog    scorer.Catalog
	Engine     *scorer.Engine
	Queue      *feedback.Queue
	Breaker    *resilience.CircuitBreaker
	Uploader   *feedback.Uploader
	Scheduler  *feedback.Scheduler
	Monitor    *monitoring.Collector
}

// Close stops the scheduler and releases the store.
func (e *appEnv) Close() {
	if e.Scheduler != nil {
		e.Scheduler.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// randTiebreaker draws from the shared math/rand/v2 source, which is safe
// for concurrent use.
type randTiebreaker struct{}

func (randTiebreaker) IntN(n int) int { return rand.IntN(n) }

// initStore opens and migrates the configured key-value backend.
func initStore(ctx context.Context) (store.KV, error) {
	var (
		kv  store.KV
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		kv, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "redis":
		kv, err = store.NewRedis(ctx, cfg.Store.RedisAddr, cfg.Store.KeyPrefix)
	case "memory":
		kv = store.NewMemory()
	case "sqlite", "":
		kv, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "open %s store", cfg.Store.Driver)
	}

	if err := kv.Migrate(ctx); err != nil {
		_ = kv.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return kv, nil
}

func retryConfig() resilience.RetryConfig {
	return resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)
}

func httpClient(timeoutSecs int) *http.Client {
	if timeoutSecs <= 0 {
		timeoutSecs = 10
	}
	return &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second}
}

// configuredCoords returns the configured fixed coordinates, if any.
func configuredCoords() *model.Coordinates {
	if cfg.Location.Lat == nil || cfg.Location.Lon == nil {
		return nil
	}
	return &model.Coordinates{Lat: *cfg.Location.Lat, Lon: *cfg.Location.Lon}
}

// initEnv wires the store, lookup clients, scoring engine and feedback
// scheduler. Callers should defer env.Close().
func initEnv(ctx context.Context, opts ...feedback.Option) (*appEnv, error) {
	kv, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalog()
	if err != nil {
		_ = kv.Close()
		return nil, eris.Wrap(err, "load catalog")
	}

	geo := geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithCache(kv),
		geocode.WithRetry(retryConfig()),
	)
	wx := weather.NewClient(
		weather.WithBaseURL(cfg.Weather.BaseURL),
		weather.WithHTTPClient(httpClient(cfg.Weather.TimeoutSecs)),
		weather.WithPastDays(cfg.Weather.PastDays),
		weather.WithForecastDays(cfg.Weather.ForecastDays),
		weather.WithRetry(retryConfig()),
	)
	resolver := location.NewResolver(configuredCoords(), cfg.Location.Zip, geo)

	queue := feedback.NewQueue(kv)

	var coll feedback.Collector
	if cfg.Collector.URL != "" {
		coll = collector.NewClient(cfg.Collector.URL,
			collector.WithToken(cfg.Collector.Token),
			collector.WithHTTPClient(httpClient(cfg.Collector.TimeoutSecs)),
		)
	} else {
		zap.L().Debug("LUREIQ_COLLECTOR_URL not set, feedback stays queued locally")
	}
	breaker := resilience.NewCircuitBreaker("collector",
		cfg.Collector.FailureThreshold,
		time.Duration(cfg.Collector.ResetTimeoutSecs)*time.Second,
	)
	uploader := feedback.NewUploader(queue, coll, breaker)

	schedOpts := append([]feedback.Option{
		feedback.WithLocator(resolver),
		feedback.WithFlusher(uploader),
	}, opts...)
	sched := feedback.NewScheduler(kv, queue, schedOpts...)

	return &appEnv{
		Store:      kv,
		Locator:    resolver,
		Normalizer: conditions.NewNormalizer(wx, resolver),
		Catalog:    catalog,
		Engine:     scorer.NewEngine(catalog, scorer.WithTiebreaker(randTiebreaker{})),
		Queue:      queue,
		Breaker:    breaker,
		Uploader:   uploader,
		Scheduler:  sched,
		Monitor:    monitoring.NewCollector(queue, breaker, sched),
	}, nil
}

// Warm fetches remote weight overrides and the current conditions
// concurrently, then rebuilds the engine with the overrides. Neither
// fetch is fatal: missing weights keep catalog defaults and a failed
// conditions lookup falls back to the clock.
func (e *appEnv) Warm(ctx context.Context) conditions.Snapshot {
	var (
		snap      conditions.Snapshot
		overrides map[string]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overrides = fetchWeights(gctx)
		return nil
	})
	g.Go(func() error {
		snap = e.Normalizer.Resolve(gctx)
		return nil
	})
	_ = g.Wait()

	e.Engine = scorer.NewEngine(e.Catalog,
		scorer.WithOverrides(overrides),
		scorer.WithTiebreaker(randTiebreaker{}),
	)
	return snap
}

func fetchWeights(ctx context.Context) map[string]float64 {
	if cfg.Weights.URL == "" {
		return nil
	}
	w, err := weights.Fetch(ctx, cfg.Weights.URL, weights.WithHTTPClient(httpClient(10)))
	if err != nil {
		zap.L().Warn("weight overrides unavailable, using catalog defaults", zap.Error(err))
		return nil
	}
	zap.L().Info("weight overrides loaded", zap.Int("lures", len(w)))
	return w
}

func feedbackDelay() time.Duration {
	return time.Duration(cfg.Feedback.DelayMinutes) * time.Minute
}

func scoringDelay() time.Duration {
	return time.Duration(cfg.Session.ScoringDelayMs) * time.Millisecond
}
