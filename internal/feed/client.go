package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Client provides HTTP client functionality for the content platform API
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	semaphore  chan struct{} // Rate limiting semaphore

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64

	mu sync.RWMutex
}

// ClientConfig contains content API client configuration
type ClientConfig struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// SearchResult is one entry returned by video search
type SearchResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Topic    string `json:"topic"`
	Educator string `json:"educator"`
	Views    int    `json:"views"`
}

// SearchResponse is the payload of a video search
type SearchResponse struct {
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// UserProgress is the learner's progress payload
type UserProgress struct {
	UserID         string   `json:"userId"`
	Level          string   `json:"level"`
	XP             int      `json:"xp"`
	CurrentStreak  int      `json:"currentStreak"`
	CompletedPaths []string `json:"completedPaths"`
	Achievements   []string `json:"achievements"`
}

// QuizAnswer is the submission payload for a quiz answer
type QuizAnswer struct {
	VideoID     string `json:"videoId"`
	AnswerIndex int    `json:"answerIndex"`
}

// QuizResult is the grading payload for a submitted answer
type QuizResult struct {
	Correct     bool `json:"correct"`
	XPAwarded   int  `json:"xpAwarded"`
	StreakBonus int  `json:"streakBonus"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	FailedRequests  uint64  `json:"failed_requests"`
	SuccessRate     float64 `json:"success_rate"`
	TotalRetries    uint64  `json:"total_retries"`
	ActiveRequests  int     `json:"active_requests"`
}

// apiEnvelope wraps every platform API response body
type apiEnvelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// NewClient creates a content API client
func NewClient(config ClientConfig) *Client {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}
}

// SearchVideos queries the platform catalog
func (c *Client) SearchVideos(ctx context.Context, query string) (*SearchResponse, error) {
	endpoint := fmt.Sprintf("%s/videos/search?q=%s", c.config.Endpoint, url.QueryEscape(query))

	var result SearchResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}

	return &result, nil
}

// GetUserProgress fetches the learner's progress
func (c *Client) GetUserProgress(ctx context.Context, userID string) (*UserProgress, error) {
	endpoint := fmt.Sprintf("%s/users/%s/progress", c.config.Endpoint, url.PathEscape(userID))

	var result UserProgress
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, fmt.Errorf("get user progress: %w", err)
	}

	return &result, nil
}

// SubmitQuizAnswer submits an answer for grading
func (c *Client) SubmitQuizAnswer(ctx context.Context, answer QuizAnswer) (*QuizResult, error) {
	endpoint := fmt.Sprintf("%s/quiz/answers", c.config.Endpoint)

	var result QuizResult
	if err := c.doJSON(ctx, http.MethodPost, endpoint, answer, &result); err != nil {
		return nil, fmt.Errorf("submit quiz answer: %w", err)
	}

	return &result, nil
}

// doJSON performs one API call with concurrency limiting and retries,
// unwrapping the response envelope into out.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	// Acquire semaphore slot
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.mu.Lock()
			c.totalRetries++
			c.mu.Unlock()

			// Exponential backoff between attempts
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.attempt(ctx, method, endpoint, payload, out)
		if lastErr == nil {
			c.mu.Lock()
			c.successRequests++
			c.mu.Unlock()
			return nil
		}
	}

	c.mu.Lock()
	c.failedRequests++
	c.mu.Unlock()

	return fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}

	return nil
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		TotalRetries:    c.totalRetries,
		ActiveRequests:  len(c.semaphore),
	}

	if c.totalRequests > 0 {
		stats.SuccessRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return stats
}
