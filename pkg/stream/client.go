package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/panic80/cb-sub000/pkg/logger"
)

const streamPath = "/api/v2/chat/stream"

// ChatRequest is the body posted once per user turn. It is immutable once
// sent.
type ChatRequest struct {
	Message        string        `json:"message"`
	Model          string        `json:"model"`
	Provider       string        `json:"provider"`
	UseRAG         bool          `json:"useRAG"`
	ConversationID string        `json:"conversationId"`
	ChatHistory    []HistoryTurn `json:"chatHistory"`
}

// HistoryTurn is one prior exchange included with the request.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client speaks the backend's streaming chat protocol.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a streaming chat client. No overall timeout is set on
// the HTTP client: the response stays open for the duration of the answer,
// so callers needing a deadline wrap the context instead.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// NewClientWithHTTPClient creates a client with a caller-supplied transport,
// used by tests.
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Stream posts the request and returns a channel of decoded events in wire
// order. A non-2xx response is read as plain text and returned as an error
// before any SSE parsing begins. The channel closes when the stream ends;
// cancelling the context exits the read loop cleanly without further events.
func (c *Client) Stream(ctx context.Context, req ChatRequest) (<-chan Event, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + streamPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("request failed with status %d (failed to read error response: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(errorBody))
	}

	events := make(chan Event, 64)
	go c.readStream(ctx, resp.Body, events)

	return events, nil
}

// readStream drives the single suspendable read loop for one request:
// bytes to lines, lines to events, in exactly the order the server emitted
// them. Decoding and assembly downstream are synchronous, so SSE ordering is
// preserved end to end.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, events chan<- Event) {
	defer close(events)
	defer body.Close()

	start := time.Now()
	reader := NewLineReader(body)
	count := 0

	for {
		line, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				logger.Debug("Stream closed after %d events in %s", count, time.Since(start))
				return
			}
			if isCancellation(ctx, err) {
				logger.Debug("Stream read cancelled after %d events", count)
				return
			}
			// A mid-stream read failure is surfaced like a server error
			// event so the partial answer is replaced, never left hanging.
			events <- Event{
				Type:    EventError,
				Message: fmt.Sprintf("the connection was interrupted (%v)", err),
			}
			return
		}

		ev, ok := DecodeLine(line)
		if !ok {
			continue
		}

		select {
		case events <- ev:
			count++
		case <-ctx.Done():
			return
		}
	}
}

func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
