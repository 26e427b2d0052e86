package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hackrange/ctf-engine/internal/models"
)

// Client is a Go SDK for ctf-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new ctf-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ChallengeListOptions contains filters for listing challenges
type ChallengeListOptions struct {
	Category   string
	Difficulty string
}

// SubmissionListOptions contains filters for the submission audit log
type SubmissionListOptions struct {
	UserID      string
	ChallengeID string
	Outcome     string
	Limit       int
	Offset      int
}

// SubmitFlag submits a candidate flag for a challenge
func (c *Client) SubmitFlag(ctx context.Context, challengeID, userID, flag string) (*models.SubmissionResult, error) {
	body, err := json.Marshal(models.SubmitRequest{UserID: userID, Flag: flag})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", fmt.Sprintf("/api/v1/challenges/%s/submit", challengeID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                     `json:"success"`
		Data    *models.SubmissionResult `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// GetProgress retrieves a user's progress records
func (c *Client) GetProgress(ctx context.Context, userID string) ([]*models.ProgressRecord, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/progress?user_id=%s", userID), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Progress []*models.ProgressRecord `json:"progress"`
			Total    int                      `json:"total"`
		} `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Progress, nil
}

// Leaderboard retrieves the current leaderboard snapshot
func (c *Client) Leaderboard(ctx context.Context) (*models.LeaderboardSnapshot, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/leaderboard", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                        `json:"success"`
		Data    *models.LeaderboardSnapshot `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// ListChallenges retrieves available challenges
func (c *Client) ListChallenges(ctx context.Context, opts ChallengeListOptions) ([]*models.Challenge, error) {
	path := "/api/v1/challenges?"
	if opts.Category != "" {
		path += fmt.Sprintf("category=%s&", opts.Category)
	}
	if opts.Difficulty != "" {
		path += fmt.Sprintf("difficulty=%s&", opts.Difficulty)
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Challenges []*models.Challenge `json:"challenges"`
			Total      int                 `json:"total"`
		} `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Challenges, nil
}

// GetChallenge retrieves a challenge by ID
func (c *Client) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/challenges/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool              `json:"success"`
		Data    *models.Challenge `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// ListSubmissions retrieves the submission audit log
func (c *Client) ListSubmissions(ctx context.Context, opts SubmissionListOptions) ([]*models.SubmissionLog, error) {
	path := "/api/v1/submissions?"
	if opts.UserID != "" {
		path += fmt.Sprintf("user_id=%s&", opts.UserID)
	}
	if opts.ChallengeID != "" {
		path += fmt.Sprintf("challenge_id=%s&", opts.ChallengeID)
	}
	if opts.Outcome != "" {
		path += fmt.Sprintf("outcome=%s&", opts.Outcome)
	}
	if opts.Limit > 0 {
		path += fmt.Sprintf("limit=%d&", opts.Limit)
	}
	if opts.Offset > 0 {
		path += fmt.Sprintf("offset=%d&", opts.Offset)
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Submissions []*models.SubmissionLog `json:"submissions"`
			Total       int                     `json:"total"`
		} `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Submissions, nil
}

// UpsertUser creates or updates a roster entry
func (c *Client) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	body, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/users", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool         `json:"success"`
		Data    *models.User `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil)
	return err
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
