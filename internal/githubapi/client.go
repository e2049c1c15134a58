package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries bounds retries of rate-limited, conflicting or failing requests.
	DefaultMaxRetries = 4
	// DefaultRetryBaseDelay seeds the exponential backoff.
	DefaultRetryBaseDelay = time.Second
	// DefaultMaxRetryDelay caps any single wait, including waits for a rate limit reset.
	DefaultMaxRetryDelay = time.Minute

	tokenFieldNameConstant         = "token"
	baseURLFieldNameConstant       = "base_url"
	uploadURLFieldNameConstant     = "upload_url"
	urlPathSeparatorConstant       = "/"
	retryScheduledMessageConstant  = "github request retry scheduled"
	logFieldOperationConstant      = "operation"
	logFieldAttemptConstant        = "attempt"
	logFieldDelayConstant          = "delay"
	invalidURLMessageTemplate      = "invalid URL %q: %v"
	rateLimitWaitOperationTemplate = "%s rate limit wait"
)

// Configuration controls client construction.
type Configuration struct {
	Token string
	// BaseURL overrides the REST root, e.g. https://ghe.example.com/api/v3/.
	BaseURL string
	// UploadURL overrides the release asset upload root; defaults to BaseURL when BaseURL is set.
	UploadURL         string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	RetryBaseDelay    time.Duration
	MaxRetryDelay     time.Duration
}

// Client issues GitHub REST calls with throttling and retries.
type Client struct {
	github         *gh.Client
	rateLimiter    *RateLimiter
	logger         *zap.Logger
	maxRetries     int
	retryBaseDelay time.Duration
	maxRetryDelay  time.Duration
}

// NewClient builds a client authenticated with the configured token.
func NewClient(executionContext context.Context, configuration Configuration, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	token := strings.TrimSpace(configuration.Token)
	if len(token) == 0 {
		return nil, InvalidInputError{FieldName: tokenFieldNameConstant, Message: requiredValueMessageConstant}
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(executionContext, tokenSource)
	httpClient.Timeout = configuration.Timeout
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = DefaultTimeout
	}

	githubClient := gh.NewClient(httpClient)
	if baseURL := strings.TrimSpace(configuration.BaseURL); len(baseURL) > 0 {
		parsedBaseURL, parseError := parseRootURL(baseURL)
		if parseError != nil {
			return nil, InvalidInputError{FieldName: baseURLFieldNameConstant, Message: parseError.Error()}
		}
		githubClient.BaseURL = parsedBaseURL
		githubClient.UploadURL = parsedBaseURL
	}
	if uploadURL := strings.TrimSpace(configuration.UploadURL); len(uploadURL) > 0 {
		parsedUploadURL, parseError := parseRootURL(uploadURL)
		if parseError != nil {
			return nil, InvalidInputError{FieldName: uploadURLFieldNameConstant, Message: parseError.Error()}
		}
		githubClient.UploadURL = parsedUploadURL
	}

	client := &Client{
		github:         githubClient,
		rateLimiter:    NewRateLimiter(configuration.RequestsPerSecond),
		logger:         logger,
		maxRetries:     configuration.MaxRetries,
		retryBaseDelay: configuration.RetryBaseDelay,
		maxRetryDelay:  configuration.MaxRetryDelay,
	}
	if client.maxRetries < 0 {
		client.maxRetries = 0
	}
	if client.retryBaseDelay <= 0 {
		client.retryBaseDelay = DefaultRetryBaseDelay
	}
	if client.maxRetryDelay <= 0 {
		client.maxRetryDelay = DefaultMaxRetryDelay
	}

	return client, nil
}

// RateLimiter exposes the limiter for diagnostics.
func (client *Client) RateLimiter() *RateLimiter {
	return client.rateLimiter
}

// retryPolicy narrows which failures execute retries.
type retryPolicy struct {
	// returnConflicts hands 409 responses straight back to the caller.
	returnConflicts bool
}

// execute runs request under the limiter and retries transient failures.
func (client *Client) execute(executionContext context.Context, operation OperationName, request func() (*gh.Response, error)) error {
	return client.executeWithPolicy(executionContext, operation, retryPolicy{}, request)
}

func (client *Client) executeWithPolicy(executionContext context.Context, operation OperationName, policy retryPolicy, request func() (*gh.Response, error)) error {
	for attempt := 0; ; attempt++ {
		if waitError := client.rateLimiter.Wait(executionContext); waitError != nil {
			return OperationError{Operation: operation, Cause: fmt.Errorf(rateLimitWaitOperationTemplate+": %w", operation, waitError)}
		}

		response, requestError := request()
		if response != nil {
			client.rateLimiter.UpdateFromResponse(response.Response)
		}
		if requestError == nil {
			return nil
		}

		retryDelay, retryable := client.retryDelay(requestError, attempt, policy)
		if !retryable || attempt >= client.maxRetries || executionContext.Err() != nil {
			return OperationError{Operation: operation, Cause: client.translateError(requestError)}
		}

		client.logger.Warn(
			retryScheduledMessageConstant,
			zap.String(logFieldOperationConstant, string(operation)),
			zap.Int(logFieldAttemptConstant, attempt+1),
			zap.Duration(logFieldDelayConstant, retryDelay),
			zap.Error(requestError),
		)

		timer := time.NewTimer(retryDelay)
		select {
		case <-executionContext.Done():
			timer.Stop()
			return OperationError{Operation: operation, Cause: executionContext.Err()}
		case <-timer.C:
		}
	}
}

func (client *Client) retryDelay(requestError error, attempt int, policy retryPolicy) (time.Duration, bool) {
	var rateLimitError *gh.RateLimitError
	if errors.As(requestError, &rateLimitError) {
		return client.capDelay(time.Until(rateLimitError.Rate.Reset.Time)), true
	}

	var abuseRateLimitError *gh.AbuseRateLimitError
	if errors.As(requestError, &abuseRateLimitError) {
		if retryAfter := abuseRateLimitError.GetRetryAfter(); retryAfter > 0 {
			return client.capDelay(retryAfter), true
		}
		return client.backoff(attempt), true
	}

	var errorResponse *gh.ErrorResponse
	if errors.As(requestError, &errorResponse) && errorResponse.Response != nil {
		statusCode := errorResponse.Response.StatusCode
		if statusCode == http.StatusConflict && policy.returnConflicts {
			return 0, false
		}
		if statusCode == http.StatusConflict || statusCode >= http.StatusInternalServerError {
			return client.backoff(attempt), true
		}
	}

	return 0, false
}

func (client *Client) backoff(attempt int) time.Duration {
	return client.capDelay(client.retryBaseDelay << attempt)
}

func (client *Client) capDelay(delay time.Duration) time.Duration {
	if delay <= 0 {
		return client.retryBaseDelay
	}
	if delay > client.maxRetryDelay {
		return client.maxRetryDelay
	}
	return delay
}

// translateError converts go-github errors to package error types.
func (client *Client) translateError(requestError error) error {
	var rateLimitError *gh.RateLimitError
	if errors.As(requestError, &rateLimitError) {
		return &RateLimitError{
			ResetAt:   rateLimitError.Rate.Reset.Time,
			Remaining: rateLimitError.Rate.Remaining,
			Limit:     rateLimitError.Rate.Limit,
		}
	}

	var errorResponse *gh.ErrorResponse
	if errors.As(requestError, &errorResponse) && errorResponse.Response != nil {
		requestURL := ""
		if errorResponse.Response.Request != nil && errorResponse.Response.Request.URL != nil {
			requestURL = errorResponse.Response.Request.URL.String()
		}
		return &APIError{
			StatusCode: errorResponse.Response.StatusCode,
			Message:    errorResponse.Message,
			URL:        requestURL,
		}
	}

	return requestError
}

func parseRootURL(rawURL string) (*url.URL, error) {
	if !strings.HasSuffix(rawURL, urlPathSeparatorConstant) {
		rawURL += urlPathSeparatorConstant
	}
	parsedURL, parseError := url.Parse(rawURL)
	if parseError != nil {
		return nil, fmt.Errorf(invalidURLMessageTemplate, rawURL, parseError)
	}
	if len(parsedURL.Scheme) == 0 || len(parsedURL.Host) == 0 {
		return nil, fmt.Errorf(invalidURLMessageTemplate, rawURL, "scheme and host required")
	}
	return parsedURL, nil
}
