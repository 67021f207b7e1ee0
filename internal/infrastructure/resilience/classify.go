package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

// Rule classifies the errors one backend knows about. ok=false defers to the
// shared fallback.
type Rule func(err error) (class ErrorClassification, ok bool)

var transient = ErrorClassification{Retryable: true, RecordFailure: true}

// Classifier layers a backend rule over the cases all backends share: caller
// cancellation is neither retried nor counted, an open breaker and network
// errors are transient, and anything else counts against the breaker.
func Classifier(rule Rule) ErrorClassifier {
	return func(err error) ErrorClassification {
		switch {
		case err == nil:
			return ErrorClassification{}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return ErrorClassification{}
		case IsCircuitOpen(err):
			return transient
		}
		if rule != nil {
			if class, ok := rule(err); ok {
				return class
			}
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return transient
		}
		return ErrorClassification{RecordFailure: true}
	}
}

// HTTPStatus classifies an upstream status code. Gateway and throttling
// codes are transient, other 5xx count as failures, 4xx are the caller's
// fault and leave the breaker alone.
func HTTPStatus(code int) ErrorClassification {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return transient
	}
	if code >= http.StatusInternalServerError {
		return ErrorClassification{RecordFailure: true}
	}
	return ErrorClassification{}
}

// MarkTemporary tags retryable errors as domain.ErrTemporary so the HTTP
// layer answers 503.
func MarkTemporary(classify ErrorClassifier, operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
