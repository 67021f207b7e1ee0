package nats

import (
	"errors"

	"github.com/kirillkom/requirements-guard/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// classifyNATSError treats lost connectivity as transient; the client
// reconnects on its own.
var classifyNATSError = resilience.Classifier(func(err error) (resilience.ErrorClassification, bool) {
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}, true
	}
	return resilience.ErrorClassification{}, false
})
