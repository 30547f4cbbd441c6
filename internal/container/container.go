package container

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/marshalljacobs12/upredis/internal/cache"
	"github.com/marshalljacobs12/upredis/internal/events"
	"github.com/marshalljacobs12/upredis/internal/handlers"
	"github.com/marshalljacobs12/upredis/internal/health"
	"github.com/marshalljacobs12/upredis/internal/leaderboard"
	"github.com/marshalljacobs12/upredis/internal/middleware"
	"github.com/marshalljacobs12/upredis/internal/ratelimit"
	"github.com/marshalljacobs12/upredis/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// Options holds the service configuration.
type Options struct {
	Port      int    `default:"8888"           help:"Port to listen on"              short:"p"`
	RedisAddr string `default:"localhost:6379" help:"Redis server address"           short:"r"`
	LogFormat string `default:"console"        help:"Log format (console or json)"`

	Algorithm         string  `default:"sliding-window" help:"Rate limit algorithm (fixed-window, sliding-window, token-bucket)"`
	RateLimit         int64   `default:"60"             help:"Requests per window (window algorithms)"`
	RateWindowSeconds int64   `default:"60"             help:"Window length in seconds (window algorithms)"`
	BucketCapacity    int64   `default:"10"             help:"Bucket capacity (token-bucket)"`
	RefillRate        float64 `default:"1"              help:"Tokens per second (token-bucket)"`

	CachePrefix     string `default:"cache:" help:"Cache key prefix"`
	CacheTTLSeconds int64  `default:"300"    help:"Default cache TTL in seconds"`
}

func (o *Options) rateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Algorithm:  ratelimit.Algorithm(o.Algorithm),
		Limit:      o.RateLimit,
		Window:     time.Duration(o.RateWindowSeconds) * time.Second,
		Capacity:   o.BucketCapacity,
		RefillRate: o.RefillRate,
	}
}

// LoggerPackage provides the zap logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		options := do.MustInvoke[*Options](i)

		if options.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage provides the shared Redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		options := do.MustInvoke[*Options](i)

		return redis.NewClient(&redis.Options{
			Addr: options.RedisAddr,
		}), nil
	})
}

// StorePackage provides the store abstraction over Redis.
func StorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (store.Store, error) {
		return store.NewRedisStore(do.MustInvoke[*redis.Client](i)), nil
	})
}

// RateLimitPackage provides the configured rate limiter. Configuration
// errors surface here, at startup, never at request time.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*ratelimit.RateLimiter, error) {
		options := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*redis.Client](i)

		return ratelimit.New(client, options.rateLimitConfig())
	})
}

// CachePackage provides the stampede-guarded cache.
func CachePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*cache.Cache, error) {
		options := do.MustInvoke[*Options](i)

		return cache.New(do.MustInvoke[store.Store](i), cache.Options{
			Prefix:     options.CachePrefix,
			DefaultTTL: time.Duration(options.CacheTTLSeconds) * time.Second,
		}), nil
	})
}

// LeaderboardPackage provides the leaderboard client.
func LeaderboardPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*leaderboard.Leaderboard, error) {
		return leaderboard.New(do.MustInvoke[*redis.Client](i), ""), nil
	})
}

// PublisherPackage provides the decision event publisher over Redis streams.
func PublisherPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*events.Publisher, error) {
		client := do.MustInvoke[*redis.Client](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: client,
		}, watermill.NopLogger{})
		if err != nil {
			return nil, fmt.Errorf("create stream publisher: %w", err)
		}

		return events.NewPublisher(publisher), nil
	})
}

// ConsumerPackage provides the decision event consumer over Redis streams.
func ConsumerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*events.Consumer, error) {
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: "upredis-decisions",
		}, watermill.NopLogger{})
		if err != nil {
			return nil, fmt.Errorf("create stream subscriber: %w", err)
		}

		return events.NewConsumer(subscriber, logger), nil
	})
}

// HTTPPackage provides the router and API with all routes registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		client := do.MustInvoke[*redis.Client](i)
		limiter := do.MustInvoke[*ratelimit.RateLimiter](i)
		publisher := do.MustInvoke[*events.Publisher](i)

		api := humachi.New(router, huma.DefaultConfig("upredis", "1.0.0"))

		api.UseMiddleware(middleware.RateLimiter(
			api,
			limiter,
			ratelimit.Algorithm(options.Algorithm),
			publisher,
			logger,
		))

		health.RegisterRoutes(api, health.NewHandler(health.NewRedisChecker(client)))

		cacheHandler := handlers.NewCacheHandler(do.MustInvoke[*cache.Cache](i), logger)
		boardHandler := handlers.NewLeaderboardHandler(do.MustInvoke[*leaderboard.Leaderboard](i), logger)
		handlers.RegisterRoutes(api, cacheHandler, boardHandler)

		return api, nil
	})
}
