package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eugenenazirov/palletplan/internal/metrics"
)

const defaultRetryAfter = time.Second

type rateLimiter interface {
	Allow() bool
}

// retryAdvisor is implemented by limiters that know when the next token is due.
type retryAdvisor interface {
	RetryAfter() time.Duration
}

// tokenBucket admits requests at a steady rate with bursts up to its size.
type tokenBucket struct {
	limiter *rate.Limiter
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) *tokenBucket {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &tokenBucket{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (b *tokenBucket) Allow() bool {
	if b == nil || b.limiter == nil {
		return true
	}
	return b.limiter.Allow()
}

// RetryAfter is the interval between two tokens.
func (b *tokenBucket) RetryAfter() time.Duration {
	if b == nil || b.limiter == nil {
		return defaultRetryAfter
	}
	limit := b.limiter.Limit()
	if limit <= 0 || limit == rate.Inf {
		return defaultRetryAfter
	}
	return time.Duration(float64(time.Second) / float64(limit))
}

func rateLimitMiddleware(limiter rateLimiter, logger *zap.Logger, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}

		wait := defaultRetryAfter
		if advisor, ok := limiter.(retryAdvisor); ok {
			wait = advisor.RetryAfter()
		}
		seconds := int(math.Ceil(wait.Seconds()))
		if seconds < 1 {
			seconds = 1
		}

		metrics.RecordRateLimited()
		logger.Debug("request rate limited",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
		)

		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}
