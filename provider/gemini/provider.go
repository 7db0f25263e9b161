package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/atelier-ai/atelier/provider"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

const (
	providerName = "gemini"
	envAPIKey    = "GEMINI_API_KEY"
)

type Provider struct {
	apiKey string

	clientOnce sync.Once
	client     *genai.Client
	clientErr  error
}

func New() *Provider {
	return &Provider{apiKey: os.Getenv(envAPIKey)}
}

// ensureClient builds the genai client on first use. The SDK constructor
// needs a context, so construction is deferred until the first Generate.
func (p *Provider) ensureClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, &provider.CredentialError{Provider: providerName, EnvVar: envAPIKey}
	}
	p.clientOnce.Do(func() {
		p.client, p.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return p.client, p.clientErr
}

func (p *Provider) buildRequest(params *provider.Request) (*genai.GenerateContentConfig, []*genai.Content, error) {
	instructions, err := params.RenderInstructions()
	if err != nil {
		return nil, nil, err
	}

	cfg := &genai.GenerateContentConfig{}
	if instructions != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: instructions}},
		}
	}
	if params.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(swag.Float64Value(params.Temperature)))
	}

	return cfg, genai.Text(params.Prompt), nil
}

func (p *Provider) Generate(ctx context.Context, params provider.Request) (<-chan provider.StreamEvent, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	cfg, contents, err := p.buildRequest(&params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, client, cfg, contents, &params, events)
		} else {
			p.runOnce(ctx, client, cfg, contents, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runStream(ctx context.Context, client *genai.Client, cfg *genai.GenerateContentConfig, contents []*genai.Content, command *provider.Request, events chan<- provider.StreamEvent) {
	defer func() {
		if err := ctx.Err(); err != nil {
			events <- errorEvent(command.RunID, err)
		}
	}()

	var notFirst bool
	var acc strings.Builder

	for chunk, err := range client.Models.GenerateContentStream(ctx, command.Model.Name(), contents, cfg) {
		if cerr := ctx.Err(); cerr != nil {
			return
		}
		if err != nil {
			events <- errorEvent(command.RunID, err)
			return
		}

		if !notFirst {
			notFirst = true
			events <- provider.Delim{RunID: command.RunID, Delim: "start"}
		}

		text := candidateText(chunk)
		if text == "" {
			continue
		}
		acc.WriteString(text)
		events <- provider.Chunk{
			RunID:     command.RunID,
			Text:      text,
			Timestamp: strfmt.DateTime(time.Now()),
		}
	}

	if notFirst && ctx.Err() == nil {
		events <- provider.Delim{RunID: command.RunID, Delim: "end"}
		events <- provider.Response{
			RunID:     command.RunID,
			Text:      acc.String(),
			Timestamp: strfmt.DateTime(time.Now()),
		}
	}
}

func (p *Provider) runOnce(ctx context.Context, client *genai.Client, cfg *genai.GenerateContentConfig, contents []*genai.Content, command *provider.Request, events chan<- provider.StreamEvent) {
	resp, err := client.Models.GenerateContent(ctx, command.Model.Name(), contents, cfg)
	if err != nil {
		events <- errorEvent(command.RunID, err)
		return
	}
	if len(resp.Candidates) == 0 {
		events <- provider.Delim{RunID: command.RunID, Delim: "empty"}
		return
	}

	events <- provider.Response{
		RunID:     command.RunID,
		Text:      candidateText(resp),
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

// candidateText joins the text parts of the first candidate. Gemini
// responses interleave text with other part kinds; only text survives
// the provider boundary.
func candidateText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func errorEvent(runID uuid.UUID, err error) provider.Error {
	var apierr *apierror.APIError
	if errors.As(err, &apierr) {
		err = provider.WithStatus(err, apierr.HTTPCode())
	}
	return provider.Error{
		RunID:     runID,
		Fault:     provider.Classify(err, providerName),
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
