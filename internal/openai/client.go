// Package openai talks to the OpenAI Assistants v2 and Chat Completions APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"FitCoach/internal/backend"
	"FitCoach/internal/cache"
	"FitCoach/internal/coach"
	"FitCoach/internal/persona"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 2000
	messagePageSize = 100
)

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client // Overrides Timeout when set
	Logger     *slog.Logger
}

// Client implements coach.Remote and coach.Completer over HTTP.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	duration   metric.Float64Histogram

	assistants cache.AssistantCache
	ensureMu   sync.Mutex
}

var (
	_ coach.Remote    = (*Client)(nil)
	_ coach.Completer = (*Client)(nil)
)

// NewClient returns a client or a *coach.ConfigurationError when the API
// key is missing.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &coach.ConfigurationError{Setting: "OPENAI_API_KEY", Reason: "not set"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter("fitcoach/openai")
	duration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", "error", err)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		tracer:     otel.Tracer("fitcoach/openai"),
		meter:      meter,
		duration:   duration,
	}, nil
}

// CreateContext creates a thread.
func (c *Client) CreateContext(ctx context.Context) (string, error) {
	var thread backend.Thread
	if err := c.do(ctx, "create thread", http.MethodPost, "/threads", struct{}{}, &thread); err != nil {
		return "", err
	}
	return thread.ID, nil
}

// AppendMessage adds a message to a thread.
func (c *Client) AppendMessage(ctx context.Context, contextID string, role coach.Role, content string) (coach.Message, error) {
	req := backend.MessageRequest{Role: string(role), Content: content}
	var msg backend.ThreadMessage
	path := "/threads/" + url.PathEscape(contextID) + "/messages"
	if err := c.do(ctx, "create message", http.MethodPost, path, req, &msg); err != nil {
		return coach.Message{}, err
	}
	return toMessage(msg), nil
}

// CreateJob starts a run of the persona's assistant on a thread, creating
// the assistant first if this process has not done so yet.
func (c *Client) CreateJob(ctx context.Context, contextID string, p persona.Persona) (coach.Job, error) {
	assistantID, err := c.EnsureAssistant(ctx, p)
	if err != nil {
		return coach.Job{}, err
	}

	var run backend.Run
	path := "/threads/" + url.PathEscape(contextID) + "/runs"
	if err := c.do(ctx, "create run", http.MethodPost, path, backend.RunRequest{AssistantID: assistantID}, &run); err != nil {
		return coach.Job{}, err
	}
	return toJob(run, contextID), nil
}

// RetrieveJob fetches the current state of a run.
func (c *Client) RetrieveJob(ctx context.Context, contextID, jobID string) (coach.Job, error) {
	var run backend.Run
	path := "/threads/" + url.PathEscape(contextID) + "/runs/" + url.PathEscape(jobID)
	if err := c.do(ctx, "retrieve run", http.MethodGet, path, nil, &run); err != nil {
		return coach.Job{}, err
	}
	if run.LastError != nil {
		c.logger.Warn("run reported an error", "run_id", run.ID, "code", run.LastError.Code, "message", run.LastError.Message)
	}
	return toJob(run, contextID), nil
}

// ListMessages returns the newest page of a thread's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, contextID string) ([]coach.Message, error) {
	q := url.Values{}
	q.Set("order", "desc")
	q.Set("limit", fmt.Sprint(messagePageSize))

	var list backend.MessageList
	path := "/threads/" + url.PathEscape(contextID) + "/messages?" + q.Encode()
	if err := c.do(ctx, "list messages", http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}

	messages := make([]coach.Message, len(list.Data))
	for i, msg := range list.Data {
		messages[i] = toMessage(msg)
	}
	return messages, nil
}

// EnsureAssistant returns the id of the assistant configured for p.
func (c *Client) EnsureAssistant(ctx context.Context, p persona.Persona) (string, error) {
	key := cache.GenerateCacheKey(p)

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()

	if id, ok := c.assistants.Load(key); ok {
		return id, nil
	}

	req := backend.AssistantRequest{
		Name:         p.Name,
		Instructions: p.Instructions,
		Model:        p.Model,
	}
	for _, tool := range p.Tools {
		req.Tools = append(req.Tools, backend.Tool{Type: tool})
	}

	var assistant backend.Assistant
	if err := c.do(ctx, "create assistant", http.MethodPost, "/assistants", req, &assistant); err != nil {
		return "", err
	}
	c.assistants.Store(key, assistant.ID)
	c.logger.Info("created assistant", "assistant_id", assistant.ID, "persona", p.Key, "model", p.Model)
	return assistant.ID, nil
}

// Complete answers prompt with a single chat completion using the persona's
// instructions as the system message.
func (c *Client) Complete(ctx context.Context, p persona.Persona, prompt string) (string, error) {
	reqBody := backend.OpenAIRequest{
		Model: p.Model,
		Messages: []backend.ChatMessage{
			{Role: "system", Content: p.Instructions},
			{Role: "user", Content: prompt},
		},
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	}

	var apiResp backend.OpenAIResponse
	if err := c.do(ctx, "chat completion", http.MethodPost, "/chat/completions", reqBody, &apiResp); err != nil {
		return "", err
	}

	c.recordMetrics(ctx, apiResp.Usage)

	if len(apiResp.Choices) > 0 {
		return apiResp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("empty response from OpenAI")
}

// do sends one JSON request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "openai."+strings.ReplaceAll(op, " ", "_"), trace.WithAttributes(
		attribute.String("http.method", method),
	))
	defer span.End()

	start := time.Now()

	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if in != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return &coach.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return &coach.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if c.duration != nil {
		c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("op", op), attribute.Int("status", resp.StatusCode)))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &coach.TransportError{Op: op, StatusCode: resp.StatusCode, Body: errorMessage(respBody)}
		span.SetStatus(codes.Error, te.Error())
		c.logger.Warn("API error", "op", op, "status", resp.StatusCode, "body", te.Body)
		return te
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: failed to unmarshal response: %w", op, err)
		}
	}

	c.logger.Debug("API call", "op", op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// recordMetrics records OpenTelemetry counters from usage data
func (c *Client) recordMetrics(ctx context.Context, usage map[string]interface{}) {
	for key, value := range usage {
		if intVal, ok := value.(float64); ok {
			counter, err := c.meter.Int64Counter(
				fmt.Sprintf("llm.usage.%s", key),
				metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
			)
			if err != nil {
				c.logger.Warn("failed to create counter", "key", key, "error", err)
				continue
			}
			counter.Add(ctx, int64(intVal))
		}
	}
}

func errorMessage(body []byte) string {
	var e backend.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func toJob(run backend.Run, contextID string) coach.Job {
	if run.ThreadID != "" {
		contextID = run.ThreadID
	}
	return coach.Job{ID: run.ID, ContextID: contextID, Status: coach.Status(run.Status)}
}

func toMessage(msg backend.ThreadMessage) coach.Message {
	var parts []string
	for _, part := range msg.Content {
		if part.Type == "text" && part.Text != nil {
			parts = append(parts, part.Text.Value)
		}
	}
	return coach.Message{
		ID:        msg.ID,
		Role:      coach.Role(msg.Role),
		Content:   strings.Join(parts, "\n"),
		CreatedAt: time.Unix(msg.CreatedAt, 0),
	}
}
