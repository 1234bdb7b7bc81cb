package dispatcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDrainBytes bounds how much of a response body is read before closing.
const maxDrainBytes = 64 << 10

type HTTPCommandSender struct {
	client *http.Client
}

func NewHTTPCommandSender() *HTTPCommandSender {
	return &HTTPCommandSender{
		client: &http.Client{},
	}
}

// WithClient replaces the HTTP client, e.g. to inject a transport.
func (s *HTTPCommandSender) WithClient(c *http.Client) *HTTPCommandSender {
	s.client = c
	return s
}

// Send posts an empty body to req.URL. The response body is drained and
// discarded so the connection can be reused.
func (s *HTTPCommandSender) Send(ctx context.Context, req CommandRequest) CommandResult {
	start := time.Now()

	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, req.URL, http.NoBody)
	if err != nil {
		return CommandResult{Error: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return CommandResult{Error: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return CommandResult{StatusCode: resp.StatusCode, Duration: time.Since(start)}
}
