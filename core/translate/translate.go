// Package translate calls the MaLangEE translation endpoint to render a
// finalized English utterance in Korean.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the MALANGEE_API_BASE_URL environment value.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		if baseURL, ok := os.LookupEnv("MALANGEE_API_BASE_URL"); ok {
			c.baseURL = baseURL
		}
	}
	return c
}

type requestBody struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type responseBody struct {
	Translated  string `json:"translated,omitempty"`
	Translation string `json:"translation,omitempty"`
}

// Translate renders the English text in Korean. The caller decides what to
// do with failures; the conversation itself never depends on this call.
func (c *Client) Translate(ctx context.Context, english string) (string, error) {
	ctx, span := tracer.Start(ctx, "translate utterance")
	defer span.End()

	if c.baseURL == "" {
		err := fmt.Errorf("translation endpoint not configured")
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	requestBodyBytes, err := json.Marshal(requestBody{
		Text:           english,
		SourceLanguage: "en",
		TargetLanguage: "ko",
	})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/translate"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	resp, err := c.client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	var body responseBody
	if err := json.Unmarshal(respBodyBytes, &body); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	korean := body.Translated
	if korean == "" {
		korean = body.Translation
	}
	if korean == "" {
		logger.Warn("translation response carried no text", "url", url)
	}
	return korean, nil
}
