package githubapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	apiErrorTemplateConstant                = "github API error %d: %s (URL: %s)"
	rateLimitErrorTemplateConstant          = "github rate limit exceeded, resets at %s"
	requiredValueMessageConstant            = "value required"
)

var (
	// ErrRepositoryExists indicates repository creation collided with an existing name.
	ErrRepositoryExists = errors.New("repository already exists")
	// ErrPathIsDirectory indicates a file operation targeted a directory.
	ErrPathIsDirectory = errors.New("path is a directory")
	// ErrPathIsNotFile indicates a download targeted a symlink or submodule.
	ErrPathIsNotFile = errors.New("path is not a regular file")
)

// OperationName describes a named GitHub API workflow supported by the client.
type OperationName string

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps failures of a named operation.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// APIError represents a GitHub API error response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (apiError *APIError) Error() string {
	return fmt.Sprintf(apiErrorTemplateConstant, apiError.StatusCode, apiError.Message, apiError.URL)
}

// RateLimitError represents an exhausted rate limit that outlived the retry budget.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (rateLimitError *RateLimitError) Error() string {
	return fmt.Sprintf(rateLimitErrorTemplateConstant, rateLimitError.ResetAt.Format(time.RFC3339))
}

// IsNotFound checks if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict checks if the error indicates a stale SHA or a concurrent commit.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitError *RateLimitError
	return errors.As(err, &rateLimitError)
}

func hasStatus(err error, statusCode int) bool {
	var apiError *APIError
	if errors.As(err, &apiError) {
		return apiError.StatusCode == statusCode
	}
	return false
}
