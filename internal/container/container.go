package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/analytics"
	auditstore "github.com/xzrsniper/affiliate-tracking-sub000/internal/analytics/store"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/handlers"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/health"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/maintenance"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/messaging"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/metrics"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/middleware"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/ratelimit"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/store"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/tracker"
	"go.uber.org/zap"
)

const (
	// AuditConsumerGroup is the Redis stream consumer group writing the audit trail.
	AuditConsumerGroup = "attribution-audit"

	auditHandlerTimeout = 5 * time.Second

	// codeAlphabet leaves out characters that are easy to confuse when read aloud.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	migrateTimeout = 30 * time.Second
)

// LoggerPackage provides the zap logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// MetricsPackage provides a dedicated Prometheus registry and the domain counters.
func MetricsPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return reg, nil
	})

	do.Provide(i, func(i *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(do.MustInvoke[*prometheus.Registry](i)), nil
	})
}

// redisConn owns the shared Redis client and closes it on shutdown.
type redisConn struct {
	client *redis.Client
}

func (r *redisConn) Shutdown() error {
	return r.client.Close()
}

// RedisPackage provides the Redis client. Only invoke it when Options.UseRedis is true.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*redisConn, error) {
		opts := do.MustInvoke[*Options](i)

		return &redisConn{client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})

	do.Provide(i, func(i *do.Injector) (*redis.Client, error) {
		return do.MustInvoke[*redisConn](i).client, nil
	})
}

// PostgresPackage provides the connection pool and the migrated Postgres store. Only
// invoke it when Options.UsePostgres is true.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*pgxpool.Pool, error) {
		opts := do.MustInvoke[*Options](i)

		pool, err := pgxpool.New(context.Background(), opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		return pool, nil
	})

	do.Provide(i, func(i *do.Injector) (*store.PostgresStore, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		pgStore := store.NewPostgresStore(do.MustInvoke[*pgxpool.Pool](i))

		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		defer cancel()

		// an older schema keeps serving; missing columns degrade at query time
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Warn("schema migration failed", zap.Error(err))
		}

		return pgStore, nil
	})
}

// repositories is the storage backend chosen from the options.
type repositories interface {
	attribution.LinkRepository
	attribution.ClickRepository
	attribution.ConversionRepository
	tracker.Repository
}

// RepositoryPackage provides the attribution and tracker repositories. Links are
// read through the Redis cache when Redis is configured.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (repositories, error) {
		if do.MustInvoke[*Options](i).UsePostgres() {
			return do.MustInvoke[*store.PostgresStore](i), nil
		}

		return store.NewMemoryStore(), nil
	})

	do.Provide(i, func(i *do.Injector) (attribution.LinkRepository, error) {
		opts := do.MustInvoke[*Options](i)
		repos := do.MustInvoke[repositories](i)

		if !opts.UseRedis() {
			return repos, nil
		}

		return store.NewRedisCacheRepository(
			repos, do.MustInvoke[*redis.Client](i), opts.linkCacheTTL(), do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (attribution.ClickRepository, error) {
		return do.MustInvoke[repositories](i), nil
	})

	do.Provide(i, func(i *do.Injector) (attribution.ConversionRepository, error) {
		return do.MustInvoke[repositories](i), nil
	})

	do.Provide(i, func(i *do.Injector) (tracker.Repository, error) {
		return do.MustInvoke[repositories](i), nil
	})
}

// MessagingPackage provides the event publisher. Redis streams carry events when
// Redis is configured; otherwise an in-process channel does.
func MessagingPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*gochannel.GoChannel, error) {
		return messaging.NewInMemoryPubSub(do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if !opts.UseRedis() {
			return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
		}

		publisher, err := messaging.NewRedisStreamPublisher(do.MustInvoke[*redis.Client](i), logger)
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

// ConsumerGroupPackage provides the audit consumer group.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var subscriber message.Subscriber

		if opts.UseRedis() {
			redisSubscriber, err := messaging.NewRedisStreamSubscriber(
				do.MustInvoke[*redis.Client](i), AuditConsumerGroup, logger,
			)
			if err != nil {
				return nil, fmt.Errorf("create redis stream subscriber: %w", err)
			}

			subscriber = redisSubscriber
		} else {
			subscriber = do.MustInvoke[*gochannel.GoChannel](i)
		}

		var audit analytics.Store = auditstore.NewLog(logger)
		group := messaging.NewConsumerGroup(subscriber, logger)

		group.Add(messaging.NewConsumer[analytics.ClickRecordedEvent](
			subscriber, analytics.TopicClickRecorded, audit.SaveClickRecorded, logger,
			messaging.WithHandlerTimeout(auditHandlerTimeout),
		))
		group.Add(messaging.NewConsumer[analytics.ConversionRecordedEvent](
			subscriber, analytics.TopicConversionRecorded, audit.SaveConversionRecorded, logger,
			messaging.WithHandlerTimeout(auditHandlerTimeout),
		))

		return group, nil
	})
}

// RateLimitPackage provides the policy limiter backed by Redis or memory.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (ratelimit.Store, error) {
		if do.MustInvoke[*Options](i).UseRedis() {
			return store.NewRateLimitRedisStore(do.MustInvoke[*redis.Client](i)), nil
		}

		return store.NewRateLimitMemoryStore(), nil
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		return ratelimit.NewPolicyLimiter(do.MustInvoke[ratelimit.Store](i), ratelimit.DefaultPolicy()), nil
	})
}

// AttributionPackage provides the click, conversion, link and stats services.
func AttributionPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*attribution.ClickRecorder, error) {
		opts := do.MustInvoke[*Options](i)
		publisher := do.MustInvoke[*messaging.PublisherGroup](i).Publisher()

		return attribution.NewClickRecorder(
			do.MustInvoke[attribution.LinkRepository](i),
			do.MustInvoke[attribution.ClickRepository](i),
			opts.clickRecorderConfig(),
			messaging.NewPublishFunc[analytics.ClickRecordedEvent](publisher, analytics.TopicClickRecorded),
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*attribution.Ingester, error) {
		opts := do.MustInvoke[*Options](i)
		publisher := do.MustInvoke[*messaging.PublisherGroup](i).Publisher()

		return attribution.NewIngester(
			do.MustInvoke[attribution.LinkRepository](i),
			do.MustInvoke[attribution.ClickRepository](i),
			do.MustInvoke[attribution.ConversionRepository](i),
			opts.ingesterConfig(),
			messaging.NewPublishFunc[analytics.ConversionRecordedEvent](publisher, analytics.TopicConversionRecorded),
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*attribution.Issuer, error) {
		generate, err := nanoid.CustomASCII(codeAlphabet, do.MustInvoke[*Options](i).CodeLength)
		if err != nil {
			return nil, fmt.Errorf("create code generator: %w", err)
		}

		return attribution.NewIssuer(do.MustInvoke[attribution.LinkRepository](i), generate), nil
	})

	do.Provide(i, func(i *do.Injector) (*attribution.Aggregator, error) {
		return attribution.NewAggregator(
			do.MustInvoke[attribution.LinkRepository](i),
			do.MustInvoke[attribution.ClickRepository](i),
			do.MustInvoke[attribution.ConversionRepository](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*attribution.PageviewVerifier, error) {
		return attribution.NewPageviewVerifier(
			do.MustInvoke[attribution.LinkRepository](i),
			do.MustInvoke[attribution.ClickRepository](i),
		), nil
	})
}

// TrackerPackage provides the tracker liveness verifier.
func TrackerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*tracker.Verifier, error) {
		opts := do.MustInvoke[*Options](i)

		return tracker.NewVerifier(
			do.MustInvoke[tracker.Repository](i),
			tracker.NewHTTPProber(opts.probeTimeout()),
			opts.verifierConfig(),
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// MaintenancePackage provides the cleanup scheduler.
func MaintenancePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*maintenance.Scheduler, error) {
		return maintenance.NewScheduler(
			do.MustInvoke[*tracker.Verifier](i),
			do.MustInvoke[*Options](i).trackerRetention(),
			maintenance.DefaultSchedule,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// HTTPPackage provides the router and the Huma API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()

		// the snippet runs on merchant sites and sends the attribution cookie along
		router.Use(cors.Handler(cors.Options{
			AllowOriginFunc:  func(_ *http.Request, _ string) bool { return true },
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", middleware.VisitorHeader, middleware.OwnerHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		router.Handle("/metrics", promhttp.HandlerFor(do.MustInvoke[*prometheus.Registry](i), promhttp.HandlerOpts{}))

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		api := humachi.New(do.MustInvoke[*chi.Mux](i), handlers.NewAPIConfig("Affiliate Tracking", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api))
		api.UseMiddleware(middleware.PolicyRateLimiter(
			api,
			do.MustInvoke[*ratelimit.PolicyLimiter](i),
			ratelimit.NewOperationScopeResolver(),
			logger,
		))

		health.RegisterRoutes(api, health.NewHandler(healthCheckers(i, opts)))

		handlers.RegisterRoutes(api,
			handlers.NewRedirectHandler(do.MustInvoke[*attribution.ClickRecorder](i), opts.cookieConfig(), logger),
			handlers.NewConversionHandler(
				do.MustInvoke[*attribution.Ingester](i),
				do.MustInvoke[*attribution.PageviewVerifier](i),
				logger,
			),
			handlers.NewTrackerHandler(do.MustInvoke[*tracker.Verifier](i), logger),
			handlers.NewLinkHandler(
				do.MustInvoke[*attribution.Issuer](i),
				do.MustInvoke[attribution.LinkRepository](i),
				do.MustInvoke[*attribution.Aggregator](i),
				opts.PublicBaseURL(),
				logger,
			),
		)

		return api, nil
	})
}

func healthCheckers(i *do.Injector, opts *Options) map[string]health.Checker {
	checkers := make(map[string]health.Checker)

	if opts.UseRedis() {
		checkers["redis"] = health.NewRedisChecker(do.MustInvoke[*redis.Client](i))
	}

	if opts.UsePostgres() {
		checkers["postgres"] = health.NewPostgresChecker(do.MustInvoke[*pgxpool.Pool](i))
	}

	return checkers
}

// ServerPackages registers everything the HTTP server needs.
func ServerPackages(i *do.Injector) {
	LoggerPackage(i)
	MetricsPackage(i)
	RedisPackage(i)
	PostgresPackage(i)
	RepositoryPackage(i)
	MessagingPackage(i)
	ConsumerGroupPackage(i)
	RateLimitPackage(i)
	AttributionPackage(i)
	TrackerPackage(i)
	MaintenancePackage(i)
	HTTPPackage(i)
}

// StartBackground starts the maintenance scheduler and, without Redis, the in-process
// audit consumers. A separate consumer binary reads the Redis streams.
func StartBackground(ctx context.Context, i *do.Injector) error {
	if err := do.MustInvoke[*maintenance.Scheduler](i).Start(ctx); err != nil {
		return fmt.Errorf("start maintenance: %w", err)
	}

	if do.MustInvoke[*Options](i).UseRedis() {
		return nil
	}

	if err := do.MustInvoke[*messaging.ConsumerGroup](i).Start(ctx); err != nil {
		return fmt.Errorf("start audit consumers: %w", err)
	}

	return nil
}
