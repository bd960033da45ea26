package advisor

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
)

// Package advisor turns a single trend series into markdown health advice by
// calling an OpenAI-compatible chat completions endpoint. Any provider that
// speaks that wire format works; the base URL and model come from config.

const (
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 1.0
	DefaultTimeout     = 120 * time.Second

	systemPrompt = "You are a professional health data analyst."
)

//go:embed prompt.md
var promptTemplate string

// AdviceRequest carries one parameter's series for analysis.
type AdviceRequest struct {
	Parameter  string    `json:"parameter"`
	TimeScale  string    `json:"time_scale"`
	Unit       string    `json:"unit"`
	Timestamps []string  `json:"timestamps"`
	Values     []float64 `json:"values"`
}

// Validate checks the fields a prompt cannot be built without.
func (r *AdviceRequest) Validate() error {
	switch {
	case r.Parameter == "":
		return fmt.Errorf("%w: missing field: parameter", models.ErrValidation)
	case r.TimeScale == "":
		return fmt.Errorf("%w: missing field: time_scale", models.ErrValidation)
	case r.Unit == "":
		return fmt.Errorf("%w: missing field: unit", models.ErrValidation)
	case len(r.Timestamps) == 0:
		return fmt.Errorf("%w: missing field: timestamps", models.ErrValidation)
	case len(r.Values) == 0:
		return fmt.Errorf("%w: missing field: values", models.ErrValidation)
	case len(r.Timestamps) != len(r.Values):
		return fmt.Errorf("%w: timestamps and values must have equal length", models.ErrValidation)
	}
	return nil
}

// Client calls a chat completions API.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	log         *slog.Logger
}

func NewClient(baseURL, apiKey, model string, temperature float64, log *slog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		log:         log,
	}
}

// Enabled reports whether the client has an endpoint to talk to.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Analyze builds the prompt for one series and returns the model's markdown
// answer verbatim.
func (c *Client) Analyze(ctx context.Context, req *AdviceRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if !c.Enabled() {
		return "", fmt.Errorf("%w: advisor is not configured", models.ErrConfig)
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: c.temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling advisor request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("creating advisor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("advisor request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading advisor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("advisor API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("parsing advisor response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("no choices in advisor response")
	}
	return chat.Choices[0].Message.Content, nil
}

func buildPrompt(req *AdviceRequest) string {
	values := make([]string, len(req.Values))
	for i, v := range req.Values {
		values[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	r := strings.NewReplacer(
		"{parameter}", req.Parameter,
		"{time_scale}", req.TimeScale,
		"{unit}", req.Unit,
		"{timestamps}", strings.Join(req.Timestamps, ", "),
		"{values}", strings.Join(values, ", "),
	)
	return r.Replace(promptTemplate)
}
