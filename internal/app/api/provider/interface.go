package provider

import (
	"context"
)

// TranscriptionProvider is the contract every speech-to-text backend
// implements. Implementations classify their failures as transient or
// permanent through the domain error kinds so callers can decide retry
// eligibility.
type TranscriptionProvider interface {
	// Transcribe converts the audio stream into text plus timed segments.
	// Empty audio yields an empty result, not an error.
	Transcribe(ctx context.Context, req *Request) (*Result, error)

	// Name identifies the provider in config, metrics and logs.
	Name() string

	// ValidateConfiguration reports whether the provider can run with its
	// current credentials and settings.
	ValidateConfiguration() error
}

// Registry manages named transcription providers.
type Registry interface {
	Register(name string, p TranscriptionProvider) error
	Get(name string) (TranscriptionProvider, error)
	ListProviders() []string
	GetDefault() (TranscriptionProvider, error)
	SetDefault(name string) error
}
