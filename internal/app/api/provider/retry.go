package provider

import (
	"bytes"
	"context"
	"io"
	"time"

	apperrors "voicepipe/internal/app/errors"
)

// RetryConfig bounds the retry loop for transient provider failures.
type RetryConfig struct {
	MaxAttempts        int           `yaml:"max_attempts"`
	InitialBackoff     time.Duration `yaml:"initial_backoff"`
	BackoffCoefficient float64       `yaml:"backoff_coefficient"`
	MaxBackoff         time.Duration `yaml:"max_backoff"`
}

// DefaultRetryConfig mirrors the workflow retry policy used elsewhere in the
// system: three attempts, one second initial backoff, doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:        3,
		InitialBackoff:     time.Second,
		BackoffCoefficient: 2.0,
		MaxBackoff:         30 * time.Second,
	}
}

// RetryingProvider decorates a provider with bounded exponential backoff.
// Only transient failures are retried; permanent failures propagate on the
// first attempt. The wrapper buffers the audio so each attempt reads a fresh
// stream, and records per-attempt metrics.
type RetryingProvider struct {
	inner  TranscriptionProvider
	config RetryConfig
}

// WithRetry wraps a provider with the given retry policy
func WithRetry(inner TranscriptionProvider, config RetryConfig) *RetryingProvider {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.BackoffCoefficient < 1 {
		config.BackoffCoefficient = 2.0
	}
	return &RetryingProvider{inner: inner, config: config}
}

func (p *RetryingProvider) Name() string {
	return p.inner.Name()
}

func (p *RetryingProvider) ValidateConfiguration() error {
	return p.inner.ValidateConfiguration()
}

func (p *RetryingProvider) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	audio, err := io.ReadAll(req.Audio)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read audio stream")
	}

	backoff := p.config.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		attemptReq := *req
		attemptReq.Audio = bytes.NewReader(audio)

		start := time.Now()
		result, err := p.inner.Transcribe(ctx, &attemptReq)
		if err == nil {
			recordAttempt(p.inner.Name(), "success", time.Since(start))
			return result, nil
		}
		recordAttempt(p.inner.Name(), "failure", time.Since(start))
		lastErr = err

		if !apperrors.IsRetryable(err) || attempt == p.config.MaxAttempts {
			break
		}

		recordRetry(p.inner.Name())
		select {
		case <-ctx.Done():
			return nil, apperrors.Transient("transcription cancelled", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * p.config.BackoffCoefficient)
		if p.config.MaxBackoff > 0 && backoff > p.config.MaxBackoff {
			backoff = p.config.MaxBackoff
		}
	}

	return nil, lastErr
}
