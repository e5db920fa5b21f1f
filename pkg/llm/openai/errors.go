package openai

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/openai/openai-go/v2"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

// classifyError maps OpenAI API failures onto the provider error kinds.
// Timeouts, connection failures and rate limits are transient; auth and
// bad-request failures are fatal and never retried.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return interfaces.NewAgentError("", interfaces.ErrorKindProviderTransient, "OpenAI request failed", err)
		default:
			return interfaces.NewAgentError("", interfaces.ErrorKindProviderFatal, "OpenAI rejected request", err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return interfaces.NewAgentError("", interfaces.ErrorKindProviderTransient, "OpenAI connection failed", err)
	}

	return interfaces.NewAgentError("", interfaces.ErrorKindProviderTransient, "OpenAI call failed", err)
}
