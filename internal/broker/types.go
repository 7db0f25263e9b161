package broker

import (
	"context"

	"github.com/atelier-ai/atelier/events"
)

type Broker interface {
	Topic(context.Context, string) Topic
}

type Topic interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

func forwardToHook(ctx context.Context, channel <-chan events.Event, hook events.Hook) {
	for {
		select {
		case event, ok := <-channel:
			if !ok {
				return
			}
			switch event := event.(type) {
			case events.SessionStarted:
				hook.OnSessionStarted(ctx, event)
			case events.ArtifactChunk:
				hook.OnArtifactChunk(ctx, event)
			case events.ArtifactCompleted:
				hook.OnArtifactCompleted(ctx, event)
			case events.ArtifactFailed:
				hook.OnArtifactFailed(ctx, event)
			}
		case <-ctx.Done():
			return
		}
	}
}
