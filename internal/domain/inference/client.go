package inference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/healthmetrica/cdss/internal/domain/labtest"
	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

// Client calls the inference endpoints. It never returns a Go error: every
// failure is folded into an Envelope with Success false.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient targets baseURL, e.g. "http://localhost:8000/api".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Diagnose(ctx context.Context, req DiagnoseRequest) Envelope[DiagnoseResponse] {
	if req.Symptoms == nil {
		req.Symptoms = []string{}
	}
	return call[DiagnoseResponse](ctx, c, "/diagnose", req)
}

func (c *Client) OrderLabTests(ctx context.Context, req LabOrderRequest) Envelope[labtest.Order] {
	return call[labtest.Order](ctx, c, "/lab-tests", req)
}

func (c *Client) ExtractSymptoms(ctx context.Context, text string) Envelope[ExtractResponse] {
	return call[ExtractResponse](ctx, c, "/nlp/extract-symptoms", ExtractRequest{Text: text})
}

// ExtractSymptomsOrEmpty returns the extracted symptoms, or an empty set
// when the call fails or does not finish within timeout.
func (c *Client) ExtractSymptomsOrEmpty(ctx context.Context, text string, timeout time.Duration) symptom.Set {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res := c.ExtractSymptoms(ctx, text)
	if !res.Success || res.Data == nil {
		return symptom.Set{}
	}
	return symptom.Parse(res.Data.Symptoms)
}

func call[T any](ctx context.Context, c *Client, path string, body interface{}) Envelope[T] {
	payload, err := json.Marshal(body)
	if err != nil {
		return failure[T](fmt.Sprintf("encode request: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return failure[T](fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return failure[T](fmt.Sprintf("request %s: %v", path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure[T](fmt.Sprintf("read response: %v", err))
	}

	var env Envelope[T]
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && env.Error != "" {
			return failure[T](env.Error)
		}
		return failure[T](fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return failure[T](fmt.Sprintf("decode response: %v", decodeErr))
	}
	if !env.Success {
		if env.Error == "" {
			env.Error = "request failed"
		}
		return failure[T](env.Error)
	}
	if env.Data == nil {
		return failure[T]("response has no data")
	}
	return env
}
