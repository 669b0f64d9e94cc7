package client

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/kjstillabower/busan-travel-service/internal/circuitbreaker"
	"github.com/kjstillabower/busan-travel-service/internal/kma"
)

// ErrorCategory is a stable label for error classification in metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryTimeout           ErrorCategory = "timeout"
	ErrorCategoryNetwork           ErrorCategory = "network"
	ErrorCategoryMissingCredential ErrorCategory = "missing_credential"
	ErrorCategoryInvalidCredential ErrorCategory = "invalid_credential"
	ErrorCategoryRateLimited       ErrorCategory = "rate_limited"
	ErrorCategoryUpstream          ErrorCategory = "upstream"
	ErrorCategoryParsing           ErrorCategory = "parsing"
	ErrorCategoryCircuitOpen       ErrorCategory = "circuit_open"
	ErrorCategoryUnknown           ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if isTimeout(err) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrSearchNotConfigured) {
		return ErrorCategoryMissingCredential
	}
	if errors.Is(err, ErrInvalidCredential) {
		return ErrorCategoryInvalidCredential
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrorCategoryRateLimited
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return ErrorCategoryCircuitOpen
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return ErrorCategoryUpstream
	}
	if errors.Is(err, kma.ErrMalformedPayload) {
		return ErrorCategoryParsing
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "no such host") {
		return ErrorCategoryNetwork
	}
	if strings.Contains(errStr, "parse") || strings.Contains(errStr, "unmarshal") {
		return ErrorCategoryParsing
	}

	return ErrorCategoryUnknown
}

// isTimeout covers context errors and transport timeouts (http.Client.Timeout).
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
