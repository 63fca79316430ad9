package whisper

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/sashabaranov/go-openai"

	"voicepipe/internal/app/api/provider"
	apperrors "voicepipe/internal/app/errors"
)

const ProviderName = "openai/whisper"

// Provider transcribes audio through the OpenAI Whisper API.
type Provider struct {
	client *openai.Client
}

// NewProvider creates a whisper provider on the given client.
func NewProvider(client *openai.Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) ValidateConfiguration() error {
	if p.client == nil {
		return apperrors.New(apperrors.KindInvalidInput, "openai client not configured")
	}
	return nil
}

func (p *Provider) Transcribe(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   req.Audio,
		FilePath: req.Filename,
		Language: req.Language,
		Prompt:   req.Prompt,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	segments := make([]provider.Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, provider.Segment{
			Text:       seg.Text,
			Start:      seg.Start,
			End:        seg.End,
			Confidence: confidenceFromLogprob(seg.AvgLogprob),
		})
	}

	return &provider.Result{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: time.Duration(resp.Duration * float64(time.Second)),
		Segments: segments,
	}, nil
}

// confidenceFromLogprob maps whisper's average token log probability onto a
// 0..1 confidence.
func confidenceFromLogprob(avgLogprob float64) float64 {
	c := math.Exp(avgLogprob)
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return apperrors.Transient("whisper rate limited", err)
		case apiErr.HTTPStatusCode >= 500:
			return apperrors.Transient("whisper service unavailable", err)
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return apperrors.Permanent("whisper authentication failed", err)
		default:
			return apperrors.Permanent("whisper rejected audio", err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Transient("whisper request timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Transient("whisper request timed out", err)
	}

	return apperrors.Transient("whisper request failed", err)
}
