package provider_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicepipe/internal/app/api/provider"
	apperrors "voicepipe/internal/app/errors"
	"voicepipe/internal/app/testutil"
)

func fastRetry(attempts int) provider.RetryConfig {
	return provider.RetryConfig{
		MaxAttempts:        attempts,
		InitialBackoff:     time.Millisecond,
		BackoffCoefficient: 2.0,
		MaxBackoff:         10 * time.Millisecond,
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	inner := &testutil.StubProvider{
		ProviderName: "flaky",
		Result:       &provider.Result{Text: "hello"},
		Errs: []error{
			apperrors.Transient("rate limited", nil),
			apperrors.Transient("rate limited", nil),
		},
	}
	p := provider.WithRetry(inner, fastRetry(3))

	result, err := p.Transcribe(context.Background(), &provider.Request{
		Audio:    strings.NewReader("audio-bytes"),
		Filename: "a.wav",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, 3, inner.Calls())
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cause := apperrors.Transient("upstream unavailable", nil)
	inner := &testutil.StubProvider{
		Errs: []error{cause, cause, cause, cause},
	}
	p := provider.WithRetry(inner, fastRetry(3))

	_, err := p.Transcribe(context.Background(), &provider.Request{
		Audio: strings.NewReader("audio-bytes"),
	})
	require.Error(t, err)
	assert.Equal(t, 3, inner.Calls())
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	inner := &testutil.StubProvider{
		Errs: []error{apperrors.Permanent("unsupported audio codec", nil)},
	}
	p := provider.WithRetry(inner, fastRetry(5))

	_, err := p.Transcribe(context.Background(), &provider.Request{
		Audio: strings.NewReader("audio-bytes"),
	})
	require.Error(t, err)
	assert.Equal(t, 1, inner.Calls())
}

// readLenProvider records how many audio bytes each attempt could read, to
// prove every attempt sees a fresh stream rather than a drained one.
type readLenProvider struct {
	reads []int64
	errs  []error
}

func (r *readLenProvider) Transcribe(_ context.Context, req *provider.Request) (*provider.Result, error) {
	n, _ := io.Copy(io.Discard, req.Audio)
	r.reads = append(r.reads, n)
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return nil, err
	}
	return &provider.Result{}, nil
}

func (r *readLenProvider) Name() string                 { return "readlen" }
func (r *readLenProvider) ValidateConfiguration() error { return nil }

func TestRetry_EachAttemptReadsFullAudio(t *testing.T) {
	inner := &readLenProvider{errs: []error{
		apperrors.Transient("timeout", nil),
		apperrors.Transient("timeout", nil),
	}}
	p := provider.WithRetry(inner, fastRetry(3))

	payload := strings.Repeat("x", 4096)
	_, err := p.Transcribe(context.Background(), &provider.Request{
		Audio: strings.NewReader(payload),
	})
	require.NoError(t, err)
	require.Len(t, inner.reads, 3)
	for i, n := range inner.reads {
		assert.Equal(t, int64(len(payload)), n, "attempt %d read a partial stream", i+1)
	}
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	inner := &testutil.StubProvider{
		Errs: []error{apperrors.Transient("timeout", nil)},
	}
	p := provider.WithRetry(inner, provider.RetryConfig{
		MaxAttempts:        3,
		InitialBackoff:     time.Hour,
		BackoffCoefficient: 2.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Transcribe(ctx, &provider.Request{Audio: strings.NewReader("a")})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Transcribe did not return after cancellation")
	}
	assert.Equal(t, 1, inner.Calls())
}

func TestRetry_ZeroConfigGetsSaneDefaults(t *testing.T) {
	inner := testutil.NewStubProvider("zero", &provider.Result{Text: "ok"})
	p := provider.WithRetry(inner, provider.RetryConfig{})

	result, err := p.Transcribe(context.Background(), &provider.Request{
		Audio: strings.NewReader("a"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, 1, inner.Calls())
}
