package atelier

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ai/atelier/pkg/uuidx"
	"github.com/atelier-ai/atelier/provider"
)

type stubModel struct {
	name string
	gen  func(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error)
}

func (m *stubModel) Name() string                { return m.name }
func (m *stubModel) Provider() provider.Provider { return stubProvider{gen: m.gen} }

type stubProvider struct {
	gen func(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error)
}

func (p stubProvider) Generate(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	return p.gen(ctx, req)
}

func eventStream(events ...provider.StreamEvent) <-chan provider.StreamEvent {
	ch := make(chan provider.StreamEvent, len(events))
	for _, event := range events {
		ch <- event
	}
	close(ch)
	return ch
}

// scriptedModel answers the labeling call with a fixed JSON document
// and delegates slot generations to slotGen.
func scriptedModel(labels string, slotGen func(req provider.Request) (<-chan provider.StreamEvent, error)) *stubModel {
	return &stubModel{
		name: "stub",
		gen: func(_ context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
			if req.ResponseSchema != nil {
				return eventStream(provider.Response{RunID: req.RunID, Text: labels}), nil
			}
			return slotGen(req)
		},
	}
}

func TestGenerateMergesIncrementsInOrder(t *testing.T) {
	model := scriptedModel(`{"labels":["Bold","Quiet"]}`, func(req provider.Request) (<-chan provider.StreamEvent, error) {
		return eventStream(
			provider.Chunk{RunID: req.RunID, Text: "Hel"},
			provider.Chunk{RunID: req.RunID, Text: "lo"},
			provider.Response{RunID: req.RunID, Text: "Hello"},
		), nil
	})

	studio := New(WithModel(model), WithSlots(2))
	session, err := studio.Generate(context.Background(), "greeting card")
	require.NoError(t, err)

	require.Len(t, session.Artifacts, 2)
	assert.Equal(t, "Bold", session.Artifacts[0].Label)
	assert.Equal(t, "Quiet", session.Artifacts[1].Label)
	for _, artifact := range session.Artifacts {
		assert.Equal(t, StatusComplete, artifact.Status)
		assert.Equal(t, "Hello", artifact.Text)
	}

	stored, ok := studio.Arena().Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, session.Artifacts, stored.Artifacts)
}

func TestGenerateOneFailureDoesNotCancelSiblings(t *testing.T) {
	var calls atomic.Int32
	model := scriptedModel(`{"labels":["A","B","C"]}`, func(req provider.Request) (<-chan provider.StreamEvent, error) {
		if calls.Add(1) == 1 {
			return eventStream(provider.Error{RunID: req.RunID, Fault: &provider.Fault{
				Kind: provider.KindRateLimited, Provider: "stub", Status: 429, Message: "stub: rate limit exceeded",
			}}), nil
		}
		return eventStream(provider.Response{RunID: req.RunID, Text: "<div>ok</div>"}), nil
	})

	studio := New(WithModel(model), WithSlots(3))
	session, err := studio.Generate(context.Background(), "a pricing table")
	require.NoError(t, err)
	require.Len(t, session.Artifacts, 3)

	var failed, complete int
	for _, artifact := range session.Artifacts {
		switch artifact.Status {
		case StatusError:
			failed++
			assert.Equal(t, "Error", artifact.Label)
			assert.Contains(t, artifact.Text, "rate limit exceeded")
		case StatusComplete:
			complete++
			assert.Equal(t, "<div>ok</div>", artifact.Text)
		default:
			t.Fatalf("artifact %s left in status %s", artifact.ID, artifact.Status)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, complete)
}

func TestGenerateEmptyTextIsAnError(t *testing.T) {
	model := scriptedModel(`{"labels":["A"]}`, func(req provider.Request) (<-chan provider.StreamEvent, error) {
		return eventStream(provider.Response{RunID: req.RunID, Text: "```html\n\n```"}), nil
	})

	studio := New(WithModel(model), WithSlots(1))
	session, err := studio.Generate(context.Background(), "anything")
	require.NoError(t, err)

	require.Len(t, session.Artifacts, 1)
	assert.Equal(t, StatusError, session.Artifacts[0].Status)
	assert.Contains(t, session.Artifacts[0].Text, "no content")
}

func TestGenerateStripsCodeFences(t *testing.T) {
	model := scriptedModel(`{"labels":["A"]}`, func(req provider.Request) (<-chan provider.StreamEvent, error) {
		return eventStream(provider.Response{RunID: req.RunID, Text: "```html\n<div>x</div>\n```"}), nil
	})

	studio := New(WithModel(model), WithSlots(1))
	session, err := studio.Generate(context.Background(), "anything")
	require.NoError(t, err)

	require.Len(t, session.Artifacts, 1)
	assert.Equal(t, StatusComplete, session.Artifacts[0].Status)
	assert.Equal(t, "<div>x</div>", session.Artifacts[0].Text)
}

func TestGenerateLabelShortfallPadsWithVariants(t *testing.T) {
	model := scriptedModel(`{"labels":["Only"]}`, func(req provider.Request) (<-chan provider.StreamEvent, error) {
		return eventStream(provider.Response{RunID: req.RunID, Text: "<div/>"}), nil
	})

	studio := New(WithModel(model), WithSlots(3))
	session, err := studio.Generate(context.Background(), "anything")
	require.NoError(t, err)

	require.Len(t, session.Artifacts, 3)
	assert.Equal(t, "Only", session.Artifacts[0].Label)
	assert.Equal(t, "Variant 2", session.Artifacts[1].Label)
	assert.Equal(t, "Variant 3", session.Artifacts[2].Label)
}

func TestGeneratePersonaFailureMarksEverySlot(t *testing.T) {
	model := &stubModel{
		name: "stub",
		gen: func(_ context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
			return eventStream(provider.Error{RunID: req.RunID, Fault: &provider.Fault{
				Kind: provider.KindAuth, Provider: "stub", Status: 401, Message: "stub: invalid api key",
			}}), nil
		},
	}

	studio := New(WithModel(model), WithSlots(4))
	session, err := studio.Generate(context.Background(), "anything")
	require.NoError(t, err)

	require.Len(t, session.Artifacts, 4)
	for _, artifact := range session.Artifacts {
		assert.Equal(t, StatusError, artifact.Status)
		assert.Contains(t, artifact.Text, "invalid api key")
	}
	// one shared diagnostic, not four different ones
	assert.Equal(t, session.Artifacts[0].Text, session.Artifacts[3].Text)
}

func TestGenerateStalledStreamTimesOut(t *testing.T) {
	// channel stays open but never emits
	model := scriptedModel(`{"labels":["A","B"]}`, func(provider.Request) (<-chan provider.StreamEvent, error) {
		return make(chan provider.StreamEvent), nil
	})

	studio := New(WithModel(model), WithSlots(2), WithTaskTimeout(50*time.Millisecond))

	type result struct {
		session Session
		err     error
	}
	done := make(chan result, 1)
	go func() {
		session, err := studio.Generate(context.Background(), "anything")
		done <- result{session: session, err: err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.Len(t, res.session.Artifacts, 2)
		for _, artifact := range res.session.Artifacts {
			assert.Equal(t, StatusError, artifact.Status)
			assert.Contains(t, artifact.Text, "exceeded")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session with stalled streams never finished")
	}
}

func TestGenerateStalledLabelingTimesOut(t *testing.T) {
	model := &stubModel{
		name: "stub",
		gen: func(context.Context, provider.Request) (<-chan provider.StreamEvent, error) {
			return make(chan provider.StreamEvent), nil
		},
	}

	studio := New(WithModel(model), WithSlots(2), WithTaskTimeout(50*time.Millisecond))
	session, err := studio.Generate(context.Background(), "anything")
	require.NoError(t, err)

	require.Len(t, session.Artifacts, 2)
	for _, artifact := range session.Artifacts {
		assert.Equal(t, StatusError, artifact.Status)
		assert.Contains(t, artifact.Text, "exceeded")
	}
}

func TestMergeUpdateLostTerminalStillSettles(t *testing.T) {
	studio := New()
	ctx := context.Background()
	topic := studio.broker.Topic(ctx, sessionsTopic)

	session := Session{
		ID:        uuidx.New(),
		Artifacts: []Artifact{{ID: "known", Status: StatusStreaming}},
	}
	studio.arena.Append(session)

	// terminal updates settle their slot even when the target is gone
	assert.True(t, studio.mergeUpdate(ctx, topic, session.ID, taskUpdate{artifactID: "missing", terminal: true}))
	assert.True(t, studio.mergeUpdate(ctx, topic, uuidx.New(), taskUpdate{artifactID: "known", terminal: true}))
	// a stray increment settles nothing
	assert.False(t, studio.mergeUpdate(ctx, topic, session.ID, taskUpdate{artifactID: "missing", text: "x"}))
}

func TestGenerateWithoutModel(t *testing.T) {
	_, err := New().Generate(context.Background(), "anything")
	assert.Error(t, err)
}

func TestMoreLikeThisSeedsReferenceSlot(t *testing.T) {
	var slotCalls atomic.Int32
	model := scriptedModel(`{"labels":["unused"]}`, func(req provider.Request) (<-chan provider.StreamEvent, error) {
		slotCalls.Add(1)
		return eventStream(provider.Response{RunID: req.RunID, Text: "<div>sibling</div>"}), nil
	})

	studio := New(WithModel(model), WithSlots(2))
	sourceSession := Session{
		ID:     uuidx.New(),
		Prompt: "original",
		Artifacts: []Artifact{
			{ID: "src", Label: "Bold", Text: "<div>src</div>", Status: StatusComplete},
		},
	}
	studio.Arena().Append(sourceSession)

	session, err := studio.MoreLikeThis(context.Background(), "src")
	require.NoError(t, err)

	require.Len(t, session.Artifacts, 3)
	reference := session.Artifacts[0]
	assert.Equal(t, StatusComplete, reference.Status)
	assert.Equal(t, "<div>src</div>", reference.Text)
	assert.Equal(t, "Bold (original)", reference.Label)

	for _, artifact := range session.Artifacts[1:] {
		assert.Equal(t, StatusComplete, artifact.Status)
		assert.Equal(t, "<div>sibling</div>", artifact.Text)
	}
	// no task ran for the reference slot
	assert.Equal(t, int32(2), slotCalls.Load())
}

func TestExploreVariationsEmbedsSourceText(t *testing.T) {
	var mu sync.Mutex
	var prompts []string
	model := scriptedModel(`{"labels":["unused"]}`, func(req provider.Request) (<-chan provider.StreamEvent, error) {
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		return eventStream(provider.Response{RunID: req.RunID, Text: "<div>v</div>"}), nil
	})

	studio := New(WithModel(model), WithSlots(2))
	studio.Arena().Append(Session{
		ID:        uuidx.New(),
		Artifacts: []Artifact{{ID: "src", Label: "Bold", Text: "<div>src</div>", Status: StatusComplete}},
	})

	session, err := studio.ExploreVariations(context.Background(), "src")
	require.NoError(t, err)
	require.Len(t, session.Artifacts, 2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, prompts, 2)
	for _, prompt := range prompts {
		assert.Contains(t, prompt, "<div>src</div>")
	}
}

func TestExploreVariationsUnknownArtifact(t *testing.T) {
	model := scriptedModel(`{"labels":["A"]}`, nil)
	_, err := New(WithModel(model)).ExploreVariations(context.Background(), "missing")
	assert.Error(t, err)
}

func TestBlendStylesEmbedsBothParents(t *testing.T) {
	var mu sync.Mutex
	var prompts []string
	model := scriptedModel(`{"labels":["unused"]}`, func(req provider.Request) (<-chan provider.StreamEvent, error) {
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		return eventStream(provider.Response{RunID: req.RunID, Text: "<div>blend</div>"}), nil
	})

	studio := New(WithModel(model), WithSlots(1))
	sessionID := uuidx.New()
	studio.Arena().Append(Session{
		ID: sessionID,
		Artifacts: []Artifact{
			{ID: "a", Label: "Bold", Text: "<div>a</div>", Status: StatusComplete},
			{ID: "b", Label: "Quiet", Text: "<div>b</div>", Status: StatusComplete},
		},
	})

	session, err := studio.BlendStyles(context.Background(), "a", "b")
	require.NoError(t, err)
	require.Len(t, session.Artifacts, 1)
	assert.True(t, strings.Contains(session.Artifacts[0].Label, "Bold"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "<div>a</div>")
	assert.Contains(t, prompts[0], "<div>b</div>")
}
