package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/marshalljacobs12/upredis/internal/events"
	"github.com/marshalljacobs12/upredis/internal/ratelimit"
	"go.uber.org/zap"
)

// DecisionPublisher publishes admission decisions for auditing. A nil
// publisher disables publishing.
type DecisionPublisher interface {
	PublishDecision(event *events.DecisionEvent) error
}

// RateLimiter returns a Huma middleware that gates requests through the
// given limiter, keyed by client IP and User-Agent. Rejections respond 429
// with Retry-After; store failures respond 500 so the caller, not the
// limiter, decides whether to fail open.
func RateLimiter(
	api huma.API,
	limiter ratelimit.Limiter,
	algorithm ratelimit.Algorithm,
	publisher DecisionPublisher,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		key := clientKey(ctx)

		result, err := limiter.Limit(ctx.Context(), key)
		if err != nil {
			logger.Error("rate limit check failed", zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		publishDecision(publisher, logger, ctx, key, algorithm, result)

		ctx.SetHeader("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		ctx.SetHeader("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		if !result.Allowed {
			retryAfter := int64(result.RetryAfter.Seconds())
			ctx.SetHeader("Retry-After", strconv.FormatInt(retryAfter, 10))
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "rate limit exceeded")

			return
		}

		next(ctx)
	}
}

func publishDecision(
	publisher DecisionPublisher,
	logger *zap.Logger,
	ctx huma.Context,
	key string,
	algorithm ratelimit.Algorithm,
	result ratelimit.Result,
) {
	if publisher == nil {
		return
	}

	event := &events.DecisionEvent{
		Key:        key,
		Algorithm:  string(algorithm),
		Allowed:    result.Allowed,
		Remaining:  result.Remaining,
		Limit:      result.Limit,
		RetryAfter: result.RetryAfter.Seconds(),
		ClientIP:   clientIP(ctx),
		Path:       ctx.URL().Path,
		DecidedAt:  time.Now(),
	}

	// Auditing must never block or fail admission.
	if err := publisher.PublishDecision(event); err != nil {
		logger.Warn("failed to publish decision event", zap.Error(err))
	}
}

// clientKey generates a stable rate-limit key from the client IP and
// User-Agent.
func clientKey(ctx huma.Context) string {
	ip := clientIP(ctx)
	ua := ctx.Header("User-Agent")

	hash := sha256.Sum256([]byte(ip + "|" + ua))

	return hex.EncodeToString(hash[:])
}

// clientIP extracts the client IP from the request, considering proxies.
func clientIP(ctx huma.Context) string {
	// X-Forwarded-For may contain multiple IPs; the first is the client
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	host := ctx.Host()

	ip, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}

	return ip
}
