package gemini

import (
	"context"
	"errors"
	"io"
	"strings"

	"google.golang.org/genai"

	"voicepipe/internal/app/api/provider"
	apperrors "voicepipe/internal/app/errors"
)

const ProviderName = "gemini"

const transcribePrompt = "Transcribe this audio verbatim. Output only the spoken words, nothing else."

// Provider transcribes audio through the Gemini API. Gemini returns plain
// text without segment timing, so results carry no segments.
type Provider struct {
	client *genai.Client
	model  string
}

// NewProvider creates a gemini provider from GEMINI_API_KEY.
func NewProvider(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create gemini client")
	}
	return &Provider{client: client, model: "gemini-2.0-flash"}, nil
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) ValidateConfiguration() error {
	if p.client == nil {
		return apperrors.New(apperrors.KindInvalidInput, "gemini client not configured")
	}
	return nil
}

func (p *Provider) Transcribe(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	audio, err := io.ReadAll(req.Audio)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read audio stream")
	}
	if len(audio) == 0 {
		return &provider.Result{Text: "", Segments: []provider.Segment{}}, nil
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(audio, mimeTypeFor(req.Format)),
			genai.NewPartFromText(transcribePrompt),
		}, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, classifyError(err)
	}

	return &provider.Result{
		Text:     strings.TrimSpace(resp.Text()),
		Language: req.Language,
		Segments: []provider.Segment{},
	}, nil
}

func mimeTypeFor(format provider.AudioFormat) string {
	switch format {
	case provider.FormatWAV:
		return "audio/wav"
	case provider.FormatMP3:
		return "audio/mp3"
	case provider.FormatM4A:
		return "audio/aac"
	case provider.FormatFLAC:
		return "audio/flac"
	case provider.FormatOGG:
		return "audio/ogg"
	case provider.FormatWEBM:
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return apperrors.Transient("gemini rate limited", err)
		case apiErr.Code >= 500:
			return apperrors.Transient("gemini service unavailable", err)
		case apiErr.Code == 401 || apiErr.Code == 403:
			return apperrors.Permanent("gemini authentication failed", err)
		default:
			return apperrors.Permanent("gemini rejected audio", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Transient("gemini request timed out", err)
	}
	return apperrors.Transient("gemini request failed", err)
}
