package anthropic

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

// classifyError maps Anthropic API failures onto the provider error kinds.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return interfaces.NewAgentError("", interfaces.ErrorKindProviderTransient, "Anthropic request failed", err)
		default:
			return interfaces.NewAgentError("", interfaces.ErrorKindProviderFatal, "Anthropic rejected request", err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return interfaces.NewAgentError("", interfaces.ErrorKindProviderTransient, "Anthropic connection failed", err)
	}

	return interfaces.NewAgentError("", interfaces.ErrorKindProviderTransient, "Anthropic call failed", err)
}
