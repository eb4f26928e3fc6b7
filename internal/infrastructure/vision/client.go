package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/imagetrace/backend/internal/domain"
)

const (
	maxAttempts       = 3
	defaultMaxResults = 50
	webDetection      = "WEB_DETECTION"
)

// ClientConfig holds configuration for the Vision client
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	MaxResults     int
	Timeout        time.Duration
	RequestsPerMin int
	Logger         zerolog.Logger
}

// Client calls the Google Cloud Vision images:annotate endpoint for web detection
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	maxResults  int
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	log         zerolog.Logger
	debug       bool
	sleep       func(time.Duration)
}

// NewClient creates a new Vision API client
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	perMin := config.RequestsPerMin
	if perMin <= 0 {
		perMin = 600
	}

	log := config.Logger.With().Str("component", "vision").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		maxResults:  maxResults,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(perMin)/60), 10), // burst of 10 requests
		log:         log,
		sleep:       time.Sleep,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "vision-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		// A rejected request is the caller's fault, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrInvalidRequest)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return c
}

// SetDebug enables verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// DetectWeb runs web detection for an image URL or inline image content
func (c *Client) DetectWeb(ctx context.Context, image domain.ImageSource) (*domain.MatchResult, error) {
	body, err := c.buildRequest(image)
	if err != nil {
		return nil, err
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.annotate(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrVisionUnavailable, err)
		}
		return nil, err
	}

	detection := out.(*webDetectionResult)
	result := MapWebDetection(detection)
	c.log.Info().
		Int("entities", len(result.WebEntities)).
		Int("images", len(result.VisuallySimilarImages)).
		Int("pages", len(result.PagesWithMatchingImages)).
		Msg("web detection complete")
	return result, nil
}

func (c *Client) buildRequest(image domain.ImageSource) ([]byte, error) {
	var img annotateImage
	switch {
	case len(image.Content) > 0:
		img.Content = base64.StdEncoding.EncodeToString(image.Content)
	case image.URL != "":
		img.Source = &annotateImageSource{ImageURI: image.URL}
	default:
		return nil, fmt.Errorf("%w: image URL or content is required", domain.ErrInvalidRequest)
	}

	req := annotateRequest{
		Requests: []annotateImageRequest{{
			Image:    img,
			Features: []annotateFeature{{Type: webDetection, MaxResults: c.maxResults}},
		}},
	}
	return json.Marshal(req)
}

// annotate posts the request, retrying transient failures (5xx, 429, transport errors)
func (c *Client) annotate(ctx context.Context, body []byte) (*webDetectionResult, error) {
	endpoint := fmt.Sprintf("%s/v1/images:annotate?%s", c.baseURL, url.Values{"key": {c.apiKey}}.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		status, payload, err := c.doRequest(ctx, endpoint, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("request error")
			lastErr = err
			c.backoff(attempt)
			continue
		}

		if c.debug {
			c.log.Debug().Int("status", status).Int("bytes", len(payload)).Msg("annotate response")
		}

		switch {
		case status == http.StatusOK:
			return decodeAnnotateResponse(payload)
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			c.log.Warn().Int("status", status).Int("attempt", attempt).Msg("transient API error")
			lastErr = fmt.Errorf("%w: status %d", domain.ErrVisionAPIFailure, status)
			c.backoff(attempt)
		default:
			// Remaining 4xx responses are not retried
			return nil, fmt.Errorf("%w: %w: status %d, body: %s", domain.ErrVisionAPIFailure, domain.ErrInvalidRequest, status, truncate(payload, 512))
		}
	}

	c.log.Error().Err(lastErr).Msg("all retries failed")
	return nil, lastErr
}

// doRequest executes an HTTP POST request and reads the whole body
func (c *Client) doRequest(ctx context.Context, endpoint string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "imagetrace/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrVisionAPIFailure, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading body: %v", domain.ErrVisionAPIFailure, err)
	}
	return resp.StatusCode, payload, nil
}

func decodeAnnotateResponse(payload []byte) (*webDetectionResult, error) {
	var resp annotateResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrVisionAPIFailure, err)
	}
	if len(resp.Responses) == 0 {
		return &webDetectionResult{}, nil
	}
	first := resp.Responses[0]
	if first.Error != nil && first.Error.Message != "" {
		return nil, fmt.Errorf("%w: %w: %s", domain.ErrVisionAPIFailure, domain.ErrInvalidRequest, first.Error.Message)
	}
	if first.WebDetection == nil {
		return &webDetectionResult{}, nil
	}
	return first.WebDetection, nil
}

func (c *Client) backoff(attempt int) {
	if attempt < maxAttempts {
		c.sleep(exponentialBackoff(attempt))
	}
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
