// Package categorize calls the hosted Gemini model to turn a free-form
// brain dump into typed task drafts. Any malformed or partially-typed
// response is treated the same as a transport failure: the caller gets zero
// drafts and an error, never a partial batch.
package categorize

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

	"nebnav/internal/models"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel   = "gemini-flash-lite-latest"
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	initialDelay   = 1 * time.Second
)

// ErrBadResponse marks a response the model returned that does not decode
// into a well-typed draft list.
var ErrBadResponse = errors.New("unparsable categorization response")

const promptTemplate = `You are Nebby, a helpful space co-pilot. A user has given you a 'brain dump' of their thoughts. Extract clear, actionable tasks from it. For each task, decide if it's a 'quietNebula' task (essential, low-energy, maintenance, cruising) or a 'supernova' task (aspirational, requires effort, new projects, high energy). Also, assign an 'energyLevel' from 1 (very low effort) to 5 (very high effort). Respond ONLY with a JSON array of objects. Each object should have three keys: 'text' (the task description), 'type' ('quietNebula' or 'supernova'), and 'energyLevel' (a number from 1 to 5). If there are no actionable tasks, return an empty array.

Here is the brain dump:
---
%s
---
`

// Client talks to the Gemini generateContent endpoint.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// New builds a client. Empty model or non-positive timeout fall back to the
// defaults.
func New(apiKey, model string, timeout time.Duration) *Client {
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		timeout: timeout,
		client:  &http.Client{},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType"`
	ResponseSchema   json.RawMessage `json:"responseSchema"`
}

// responseSchema constrains the model to the draft shape, mirroring the
// prompt contract.
var responseSchema = json.RawMessage(`{
  "type": "ARRAY",
  "items": {
    "type": "OBJECT",
    "properties": {
      "text": {"type": "STRING"},
      "type": {"type": "STRING", "enum": ["quietNebula", "supernova"]},
      "energyLevel": {"type": "NUMBER"}
    },
    "required": ["text", "type", "energyLevel"]
  }
}`)

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ExtractTasks sends the brain dump to the model and returns the extracted
// drafts. The call is time-boxed; on failure or timeout no drafts are
// returned.
func (c *Client) ExtractTasks(ctx context.Context, text string) ([]models.Draft, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty brain dump text")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, text)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	raw, err := c.generate(ctx, body)
	if err != nil {
		return nil, err
	}
	return parseDrafts(raw)
}

func (c *Client) generate(ctx context.Context, body []byte) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.model)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := initialDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				lastErr = fmt.Errorf("gemini api error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("gemini api error (%d)", resp.StatusCode)
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var genResp generateResponse
		if err := json.Unmarshal(respBody, &genResp); err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("%w: no candidates", ErrBadResponse)
		}
		return strings.TrimSpace(genResp.Candidates[0].Content.Parts[0].Text), nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseDrafts decodes the model's JSON payload, rejecting the whole batch on
// the first record that is not fully typed.
func parseDrafts(raw string) ([]models.Draft, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrBadResponse)
	}

	var drafts []models.Draft
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&drafts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	for i, d := range drafts {
		if strings.TrimSpace(d.Text) == "" {
			return nil, fmt.Errorf("%w: draft %d has empty text", ErrBadResponse, i)
		}
		if !d.Category.Valid() {
			return nil, fmt.Errorf("%w: draft %d has category %q", ErrBadResponse, i, d.Category)
		}
		if d.EffortLevel < 1 || d.EffortLevel > 5 {
			return nil, fmt.Errorf("%w: draft %d has energy level %d", ErrBadResponse, i, d.EffortLevel)
		}
	}
	return drafts, nil
}
