// Package githubapi wraps the GitHub REST API for minigit.
//
// Client layers go-github with an oauth2 static token, a proactive request
// limiter that also tracks the X-RateLimit headers, and retries with backoff
// for primary and secondary rate limits, commit conflicts and server errors.
// Contents API responses are normalized into Node values so callers never
// have to guess whether a path answered with one object or a list. Typed
// errors (OperationError, APIError, RateLimitError) can be inspected with
// errors.As or the IsNotFound family of helpers.
package githubapi
