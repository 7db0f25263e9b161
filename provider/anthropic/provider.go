package anthropic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/atelier-ai/atelier/provider"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/google/uuid"
)

const (
	providerName = "anthropic"
	envAPIKey    = "ANTHROPIC_API_KEY"

	// Anthropic requires an explicit output budget on every request.
	defaultMaxTokens = 8192
)

type Provider struct {
	client  *anthropic.Client
	credErr error
}

func New(options ...option.RequestOption) *Provider {
	p := &Provider{client: anthropic.NewClient(options...)}
	if len(options) == 0 && os.Getenv(envAPIKey) == "" {
		p.credErr = &provider.CredentialError{Provider: providerName, EnvVar: envAPIKey}
	}
	return p
}

func (p *Provider) buildRequest(params *provider.Request) (anthropic.MessageNewParams, error) {
	instructions, err := params.RenderInstructions()
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	msgParams := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(params.Model.Name())),
		MaxTokens: anthropic.F(int64(defaultMaxTokens)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(params.Prompt)),
		}),
	}
	if instructions != "" {
		msgParams.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(instructions),
		})
	}
	if params.Temperature != nil {
		msgParams.Temperature = anthropic.F(swag.Float64Value(params.Temperature))
	}

	return msgParams, nil
}

func (p *Provider) Generate(ctx context.Context, params provider.Request) (<-chan provider.StreamEvent, error) {
	if p.credErr != nil {
		return nil, p.credErr
	}

	msgParams, err := p.buildRequest(&params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, msgParams, &params, events)
		} else {
			p.runOnce(ctx, msgParams, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runStream(ctx context.Context, params anthropic.MessageNewParams, command *provider.Request, events chan<- provider.StreamEvent) {
	strm := p.client.Messages.NewStreaming(ctx, params)

	defer func() {
		strm.Close()
		if err := ctx.Err(); err != nil {
			events <- errorEvent(command.RunID, err)
		}
	}()

	var notFirst bool
	message := anthropic.Message{}

	for strm.Next() {
		if err := ctx.Err(); err != nil {
			return
		}

		if !notFirst {
			notFirst = true
			events <- provider.Delim{RunID: command.RunID, Delim: "start"}
		}

		event := strm.Current()
		message.Accumulate(event)

		// Only content block deltas carry text; every other event shape
		// (message_start, ping, content_block_start, ...) is metadata.
		switch delta := event.Delta.(type) {
		case anthropic.ContentBlockDeltaEventDelta:
			if delta.Text != "" {
				events <- provider.Chunk{
					RunID:     command.RunID,
					Text:      delta.Text,
					Timestamp: strfmt.DateTime(time.Now()),
				}
			}
		}
	}

	if err := strm.Err(); err != nil {
		events <- errorEvent(command.RunID, err)
		return
	}

	if notFirst && ctx.Err() == nil {
		events <- provider.Delim{RunID: command.RunID, Delim: "end"}
		events <- provider.Response{
			RunID:     command.RunID,
			Text:      messageText(&message),
			Timestamp: strfmt.DateTime(time.Now()),
		}
	}
}

func (p *Provider) runOnce(ctx context.Context, params anthropic.MessageNewParams, command *provider.Request, events chan<- provider.StreamEvent) {
	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		events <- errorEvent(command.RunID, err)
		return
	}

	events <- provider.Response{
		RunID:     command.RunID,
		Text:      messageText(message),
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func messageText(message *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

func errorEvent(runID uuid.UUID, err error) provider.Error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		err = provider.WithStatus(err, apierr.StatusCode)
	}
	return provider.Error{
		RunID:     runID,
		Fault:     provider.Classify(err, providerName),
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
