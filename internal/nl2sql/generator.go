// Package nl2sql turns a question plus retrieved schema context into SQL by
// calling a text-generation backend.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/querylens/querylens/internal/config"
	"github.com/querylens/querylens/internal/observability"
	"github.com/querylens/querylens/internal/schema"
)

type Request struct {
	Question string               `json:"question"`
	Tables   []schema.Description `json:"tables"`
	Dialect  string               `json:"dialect"`
}

type Result struct {
	SQL         string        `json:"sql"`
	RawResponse string        `json:"-"`
	Backend     string        `json:"backend"`
	Model       string        `json:"model,omitempty"`
	Attempts    int           `json:"attempts"`
	Latency     time.Duration `json:"-"`
}

// Generator is the SQL generation client used by the request pipeline.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
	HealthCheck(ctx context.Context) error
}

// Backend performs one generation call. Implementations must not retry.
type Backend interface {
	Name() string
	Model() string
	Complete(ctx context.Context, prompt Prompt) (string, error)
	HealthCheck(ctx context.Context) error
}

// GenerationError is returned once every attempt has failed.
type GenerationError struct {
	Question string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("sql generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx response from a backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation endpoint returned status=%d body=%s", e.StatusCode, e.Body)
}

// ErrEmptySQL means the backend answered but no SQL could be extracted.
var ErrEmptySQL = errors.New("model returned empty SQL")

type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client wraps a Backend with prompt construction, per-call timeouts,
// bounded exponential retries and SQL extraction.
type Client struct {
	backend Backend
	cfg     ClientConfig
	logger  *slog.Logger
}

func NewClient(backend Backend, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Client{backend: backend, cfg: cfg, logger: logger}
}

// New selects the backend named by cfg.Backend.
func New(cfg config.GenerationConfig, logger *slog.Logger) (*Client, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "remote":
		backend, err = NewRemoteBackend(RemoteConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	case "local", "":
		backend, err = NewLocalBackend(LocalConfig{BaseURL: cfg.BaseURL})
	default:
		err = fmt.Errorf("unsupported generation backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewClient(backend, ClientConfig{
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}, logger), nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.backend.HealthCheck(ctx)
}

func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("question is required")
	}
	start := time.Now()
	prompt := BuildPrompt(req)

	var (
		raw      string
		sql      string
		attempts int
	)
	op := func() error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		text, err := c.backend.Complete(callCtx, prompt)
		if err != nil {
			observability.ObserveGenerationAttempt(c.backend.Name(), "error")
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		extracted := ExtractSQL(text)
		if extracted == "" {
			observability.ObserveGenerationAttempt(c.backend.Name(), "empty")
			return backoff.Permanent(ErrEmptySQL)
		}
		observability.ObserveGenerationAttempt(c.backend.Name(), "ok")
		raw, sql = text, extracted
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     c.cfg.InitialBackoff,
		RandomizationFactor: 0.1,
		Multiplier:          2,
		MaxInterval:         c.cfg.MaxBackoff,
		Clock:               backoff.SystemClock,
	}, uint64(c.cfg.MaxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "sql generation attempt failed, retrying",
				slog.String("backend", c.backend.Name()),
				slog.Int("attempt", attempts),
				slog.String("wait", wait.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	err := backoff.RetryNotify(op, policy, notify)
	elapsed := time.Since(start)
	observability.ObserveGenerationLatency(elapsed)
	if err != nil {
		return Result{}, &GenerationError{Question: req.Question, Attempts: attempts, Err: err}
	}
	return Result{
		SQL:         sql,
		RawResponse: raw,
		Backend:     c.backend.Name(),
		Model:       c.backend.Model(),
		Attempts:    attempts,
		Latency:     elapsed,
	}, nil
}
