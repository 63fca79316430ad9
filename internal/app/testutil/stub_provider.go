package testutil

import (
	"context"
	"io"
	"sync/atomic"

	"voicepipe/internal/app/api/provider"
)

// StubProvider returns canned transcription results. Errs are consumed one
// per call before Result is returned, which lets tests script a sequence of
// transient failures followed by success.
type StubProvider struct {
	ProviderName string
	Result       *provider.Result
	Errs         []error

	calls atomic.Int64
}

func NewStubProvider(name string, result *provider.Result) *StubProvider {
	return &StubProvider{ProviderName: name, Result: result}
}

func (s *StubProvider) Transcribe(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	n := s.calls.Add(1)
	// Drain the reader like a real provider would.
	if req.Audio != nil {
		_, _ = io.Copy(io.Discard, req.Audio)
	}
	if int(n) <= len(s.Errs) {
		return nil, s.Errs[n-1]
	}
	if s.Result == nil {
		return &provider.Result{}, nil
	}
	cp := *s.Result
	return &cp, nil
}

func (s *StubProvider) Name() string {
	if s.ProviderName == "" {
		return "stub"
	}
	return s.ProviderName
}

func (s *StubProvider) ValidateConfiguration() error { return nil }

// Calls reports how many times Transcribe ran.
func (s *StubProvider) Calls() int {
	return int(s.calls.Load())
}
