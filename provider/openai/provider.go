package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/atelier-ai/atelier/provider"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	providerName = "openai"
	envAPIKey    = "OPENAI_API_KEY"
)

type Provider struct {
	client  *openai.Client
	credErr error
}

func New(options ...option.RequestOption) *Provider {
	p := &Provider{client: openai.NewClient(options...)}
	if len(options) == 0 && os.Getenv(envAPIKey) == "" {
		p.credErr = &provider.CredentialError{Provider: providerName, EnvVar: envAPIKey}
	}
	return p
}

func (p *Provider) buildRequest(params *provider.Request) (openai.ChatCompletionNewParams, error) {
	instructions, err := params.RenderInstructions()
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if instructions != "" {
		messages = append(messages, openai.SystemMessage(instructions))
	}
	messages = append(messages, openai.UserMessage(params.Prompt))

	oaiParams := openai.ChatCompletionNewParams{
		Messages: openai.F(messages),
		Model:    openai.F(params.Model.Name()),
		N:        openai.Int(1),
	}
	if params.Temperature != nil {
		oaiParams.Temperature = openai.Float(swag.Float64Value(params.Temperature))
	}

	return oaiParams, nil
}

func (p *Provider) Generate(ctx context.Context, params provider.Request) (<-chan provider.StreamEvent, error) {
	if p.credErr != nil {
		return nil, p.credErr
	}

	chatParams, err := p.buildRequest(&params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, chatParams, &params, events)
		} else {
			p.runOnce(ctx, chatParams, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runStream(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.Request, events chan<- provider.StreamEvent) {
	strm := p.client.Chat.Completions.NewStreaming(ctx, params)

	if strm.Err() != nil {
		events <- errorEvent(command.RunID, strm.Err())
		strm.Close()
		return
	}

	// Ensure cleanup on all exit paths
	defer func() {
		strm.Close()
		if err := ctx.Err(); err != nil {
			events <- errorEvent(command.RunID, err)
		}
	}()

	var notFirst bool
	var acc openai.ChatCompletionAccumulator

	for strm.Next() {
		if err := ctx.Err(); err != nil {
			return
		}

		if !notFirst {
			notFirst = true
			events <- provider.Delim{RunID: command.RunID, Delim: "start"}
		}

		chunk := strm.Current()
		if strm.Err() != nil {
			events <- errorEvent(command.RunID, strm.Err())
			return
		}

		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			events <- provider.Chunk{
				RunID:     command.RunID,
				Text:      text,
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}
	}

	if err := strm.Err(); err != nil {
		events <- errorEvent(command.RunID, err)
		return
	}

	if notFirst && ctx.Err() == nil {
		events <- provider.Delim{RunID: command.RunID, Delim: "end"}
		events <- completionToResponse(&acc.ChatCompletion, command)
	}
}

func (p *Provider) runOnce(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.Request, events chan<- provider.StreamEvent) {
	chat, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		events <- errorEvent(command.RunID, err)
		return
	}

	events <- completionToResponse(chat, command)
}

func completionToResponse(chat *openai.ChatCompletion, command *provider.Request) provider.StreamEvent {
	if len(chat.Choices) == 0 {
		return provider.Delim{RunID: command.RunID, Delim: "empty"}
	}

	return provider.Response{
		RunID:     command.RunID,
		Text:      chat.Choices[0].Message.Content,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func errorEvent(runID uuid.UUID, err error) provider.Error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		err = provider.WithStatus(err, apierr.StatusCode)
	}
	return provider.Error{
		RunID:     runID,
		Fault:     provider.Classify(err, providerName),
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
