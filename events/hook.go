package events

import (
	"context"
	"log/slog"

	"github.com/atelier-ai/atelier/pkg/slogx"
)

// Hook receives session lifecycle events. Every method must be
// implemented; when a new event type is added, implementations fail to
// compile rather than silently dropping it.
type Hook interface {
	OnSessionStarted(context.Context, SessionStarted)

	OnArtifactChunk(context.Context, ArtifactChunk)

	OnArtifactCompleted(context.Context, ArtifactCompleted)

	OnArtifactFailed(context.Context, ArtifactFailed)

	OnError(context.Context, error)
}

// LoggingHook logs every event at info level. Useful as a default
// subscriber and in tests.
func LoggingHook() Hook {
	return &loggingHook{}
}

type loggingHook struct{}

func (loggingHook) OnSessionStarted(ctx context.Context, ev SessionStarted) {
	slog.InfoContext(ctx, "session started",
		slogx.Stringer("session_id", ev.SessionID),
		slog.Int("slots", ev.Slots),
	)
}

func (loggingHook) OnArtifactChunk(ctx context.Context, ev ArtifactChunk) {
	slog.InfoContext(ctx, "artifact chunk",
		slog.String("artifact_id", ev.ArtifactID),
		slog.Int("bytes", len(ev.Text)),
	)
}

func (loggingHook) OnArtifactCompleted(ctx context.Context, ev ArtifactCompleted) {
	slog.InfoContext(ctx, "artifact completed",
		slog.String("artifact_id", ev.ArtifactID),
		slog.String("label", ev.Label),
	)
}

func (loggingHook) OnArtifactFailed(ctx context.Context, ev ArtifactFailed) {
	slog.InfoContext(ctx, "artifact failed",
		slog.String("artifact_id", ev.ArtifactID),
		slogx.Error(ev.Fault),
	)
}

func (loggingHook) OnError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "session event error", slogx.Error(err))
}
