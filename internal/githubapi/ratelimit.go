package githubapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultHourlyLimit is the authenticated REST quota assumed before the first response.
	DefaultHourlyLimit = 5000

	// DefaultMinimumBuffer is the number of requests held back before waiting for the reset.
	DefaultMinimumBuffer = 50

	headerRateLimitConstant     = "X-RateLimit-Limit"
	headerRateRemainingConstant = "X-RateLimit-Remaining"
	headerRateResetConstant     = "X-RateLimit-Reset"
)

// RateLimiter combines proactive throttling with the quota reported by GitHub.
type RateLimiter struct {
	mutex     sync.Mutex
	remaining int
	limit     int
	resetTime time.Time
	bucket    *rate.Limiter
	minBuffer int
	now       func() time.Time
}

// NewRateLimiter creates a limiter issuing at most requestsPerSecond requests.
// Non-positive rates disable proactive throttling.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &RateLimiter{
		remaining: DefaultHourlyLimit,
		limit:     DefaultHourlyLimit,
		bucket:    rate.NewLimiter(limit, 1),
		minBuffer: DefaultMinimumBuffer,
		now:       time.Now,
	}
}

// Wait blocks until a request may be issued or the context ends.
func (limiter *RateLimiter) Wait(executionContext context.Context) error {
	if waitError := limiter.bucket.Wait(executionContext); waitError != nil {
		return waitError
	}

	limiter.mutex.Lock()
	remaining := limiter.remaining
	resetTime := limiter.resetTime
	limiter.mutex.Unlock()

	currentTime := limiter.now()
	if remaining >= limiter.minBuffer || !currentTime.Before(resetTime) {
		return nil
	}

	timer := time.NewTimer(resetTime.Sub(currentTime))
	defer timer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}

// UpdateFromResponse records the quota headers of a response.
func (limiter *RateLimiter) UpdateFromResponse(response *http.Response) {
	if response == nil {
		return
	}

	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	if remainingValue, parseError := strconv.Atoi(response.Header.Get(headerRateRemainingConstant)); parseError == nil {
		limiter.remaining = remainingValue
	}
	if limitValue, parseError := strconv.Atoi(response.Header.Get(headerRateLimitConstant)); parseError == nil {
		limiter.limit = limitValue
	}
	if resetValue, parseError := strconv.ParseInt(response.Header.Get(headerRateResetConstant), 10, 64); parseError == nil {
		limiter.resetTime = time.Unix(resetValue, 0)
	}
}

// Remaining returns the last reported remaining quota.
func (limiter *RateLimiter) Remaining() int {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.remaining
}

// Limit returns the last reported quota size.
func (limiter *RateLimiter) Limit() int {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.limit
}

// ResetTime returns when the quota resets.
func (limiter *RateLimiter) ResetTime() time.Time {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.resetTime
}
