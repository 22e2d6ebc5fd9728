package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type LocalConfig struct {
	BaseURL string
	UserID  string
}

// LocalBackend calls a self-hosted generation server exposing
// POST /generate_sql and GET /health.
type LocalBackend struct {
	baseURL string
	userID  string
	client  *http.Client
}

func NewLocalBackend(cfg LocalConfig) (*LocalBackend, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "querylens"
	}
	return &LocalBackend{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		userID:  userID,
		client:  &http.Client{},
	}, nil
}

func (b *LocalBackend) Name() string  { return "local" }
func (b *LocalBackend) Model() string { return "" }

type localGenerateRequest struct {
	Question string `json:"question"`
	Prompt   string `json:"prompt"`
	UserID   string `json:"user_id"`
}

type localGenerateResponse struct {
	Success bool   `json:"success"`
	SQL     string `json:"sql"`
	Message string `json:"message"`
}

func (b *LocalBackend) Complete(ctx context.Context, prompt Prompt) (string, error) {
	body, err := json.Marshal(localGenerateRequest{
		Question: prompt.Question,
		Prompt:   prompt.Combined(),
		UserID:   b.userID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/generate_sql", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request generate_sql: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(rawRespBody)}
	}

	var parsed localGenerateResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("generation server reported failure: %s", parsed.Message)
	}
	return parsed.SQL, nil
}

func (b *LocalBackend) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	return checkStatus(b.client, httpReq)
}
