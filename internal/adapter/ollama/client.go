// Package ollama provides the streaming client for an Ollama-compatible
// /api/generate backend.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// UnreachableMessage is the diagnostic carried by a Failed event when the
// backend cannot be reached.
const UnreachableMessage = "Error: Could not reach Ollama."

const readBufferSize = 4096

// Client is the Ollama generate client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	modelsClient *http.Client
	logger       *zap.Logger
}

// NewClient creates a new Ollama client. A zero timeout leaves generation
// streams unbounded.
func NewClient(baseURL string, timeout, modelsTimeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		modelsClient: &http.Client{
			Timeout: modelsTimeout,
		},
		logger: logger.Named("ollama"),
	}
}

// GenerateRequest is the /api/generate request body. Field order is part of
// the wire contract.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// errorResponse is the body Ollama returns with a non-2xx status.
type errorResponse struct {
	Error string `json:"error"`
}

// Generate issues one streaming request and delivers the decoded events to
// sink, ending with exactly one Complete or Failed event. It returns once the
// terminal event has been delivered.
func (c *Client) Generate(ctx context.Context, model, prompt string, sink Sink) {
	dec := newDecoder(sink, c.logger)

	body, err := json.Marshal(GenerateRequest{Model: model, Prompt: prompt, Stream: true})
	if err != nil {
		c.logger.Error("failed to marshal request", zap.Error(err))
		dec.Fail(UnreachableMessage)
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create request", zap.Error(err))
		dec.Fail(UnreachableMessage)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		dec.Fail(c.transportFailure(ctx, "failed to send request", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		c.logger.Warn("backend returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			dec.Fail(backendError(errResp.Error))
			return
		}
		dec.Fail(fmt.Sprintf("Error: Ollama returned status %d.", resp.StatusCode))
		return
	}

	buf := make([]byte, readBufferSize)
	for !dec.Finished() {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			dec.Close()
			return
		}
		if err != nil {
			dec.Fail(c.transportFailure(ctx, "failed to read stream", err))
			return
		}
	}
}

// ListModels returns the model identifiers the backend advertises. Any
// failure yields an empty list.
func (c *Client) ListModels(ctx context.Context) []string {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		c.logger.Warn("failed to create request", zap.Error(err))
		return []string{}
	}

	resp, err := c.modelsClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("failed to list models", zap.Error(err))
		return []string{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("failed to list models", zap.Int("status", resp.StatusCode))
		return []string{}
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn("failed to decode model list", zap.Error(err))
		return []string{}
	}
	return result.names()
}

// tagsResponse is the body of GET /api/tags.
type tagsResponse struct {
	Models []tagModel `json:"models"`
}

type tagModel struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

func (r tagsResponse) names() []string {
	names := make([]string, 0, len(r.Models))
	for _, m := range r.Models {
		switch {
		case m.Name != "":
			names = append(names, m.Name)
		case m.Model != "":
			names = append(names, m.Model)
		}
	}
	return names
}

func (c *Client) transportFailure(ctx context.Context, msg string, err error) string {
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.logger.Debug("request cancelled", zap.Error(ctxErr))
		return "Error: " + ctxErr.Error()
	}
	c.logger.Warn(msg, zap.String("base_url", c.baseURL), zap.Error(err))
	return UnreachableMessage
}

func backendError(msg string) string {
	return "Error: " + msg
}
