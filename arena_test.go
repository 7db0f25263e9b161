package atelier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ai/atelier/pkg/uuidx"
)

func testSession(label string) Session {
	id := uuidx.New()
	return Session{
		ID:     id,
		Prompt: "prompt",
		Artifacts: []Artifact{
			{ID: ArtifactID(id, 0), Label: label, Text: "<div/>", Status: StatusStreaming},
			{ID: ArtifactID(id, 1), Label: label, Text: "<p/>", Status: StatusStreaming},
		},
	}
}

func TestArenaAppendSetsActive(t *testing.T) {
	arena := NewArena()
	first := testSession("a")
	second := testSession("b")

	arena.Append(first)
	arena.Append(second)

	active, ok := arena.Active()
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)

	sessions := arena.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID)
	assert.Equal(t, second.ID, sessions[1].ID)
}

func TestArenaEmptyActive(t *testing.T) {
	_, ok := NewArena().Active()
	assert.False(t, ok)
}

func TestArenaGetReturnsCopy(t *testing.T) {
	arena := NewArena()
	session := testSession("a")
	arena.Append(session)

	got, ok := arena.Get(session.ID)
	require.True(t, ok)
	got.Artifacts[0].Text = "mutated"

	fresh, ok := arena.Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, "<div/>", fresh.Artifacts[0].Text)
}

func TestArenaReplaceArtifactByID(t *testing.T) {
	arena := NewArena()
	session := testSession("a")
	arena.Append(session)

	updated := session.Artifacts[1]
	updated.Text = "<p>done</p>"
	updated.Status = StatusComplete
	require.True(t, arena.replaceArtifact(session.ID, updated))

	got, ok := arena.Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, "<p>done</p>", got.Artifacts[1].Text)
	assert.Equal(t, StatusComplete, got.Artifacts[1].Status)
	// sibling untouched
	assert.Equal(t, "<div/>", got.Artifacts[0].Text)
	assert.Equal(t, StatusStreaming, got.Artifacts[0].Status)
}

func TestArenaReplaceArtifactUnknownIDs(t *testing.T) {
	arena := NewArena()
	session := testSession("a")
	arena.Append(session)

	assert.False(t, arena.replaceArtifact(uuidx.New(), session.Artifacts[0]))
	assert.False(t, arena.replaceArtifact(session.ID, Artifact{ID: "nope"}))
}

// a task finishing after its session was superseded still lands its
// write in that session
func TestArenaSupersededSessionStillWritable(t *testing.T) {
	arena := NewArena()
	old := testSession("old")
	arena.Append(old)
	arena.Append(testSession("new"))

	late := old.Artifacts[0]
	late.Text = "<div>late</div>"
	late.Status = StatusComplete
	require.True(t, arena.replaceArtifact(old.ID, late))

	got, ok := arena.Get(old.ID)
	require.True(t, ok)
	assert.Equal(t, "<div>late</div>", got.Artifacts[0].Text)

	active, ok := arena.Active()
	require.True(t, ok)
	assert.NotEqual(t, old.ID, active.ID)
}

func TestArenaFindArtifact(t *testing.T) {
	arena := NewArena()
	session := testSession("a")
	arena.Append(session)

	owner, artifact, ok := arena.FindArtifact(session.Artifacts[1].ID)
	require.True(t, ok)
	assert.Equal(t, session.ID, owner.ID)
	assert.Equal(t, "<p/>", artifact.Text)

	_, _, ok = arena.FindArtifact("missing")
	assert.False(t, ok)
}
