package atelier

import (
	"context"
	"fmt"
)

// ExploreVariations starts a session whose slots each produce a
// distinct reinterpretation of an existing artifact.
func (s *Studio) ExploreVariations(ctx context.Context, artifactID string) (Session, error) {
	if s.model == nil {
		return Session{}, fmt.Errorf("studio has no model configured")
	}
	_, source, ok := s.arena.FindArtifact(artifactID)
	if !ok {
		return Session{}, fmt.Errorf("artifact %s not found", artifactID)
	}

	slots := make([]slotSpec, s.slots)
	for i := range slots {
		label := fmt.Sprintf("%s / Variation %d", source.Label, i+1)
		slots[i] = slotSpec{
			label:        label,
			instructions: personaInstructions(label),
			prompt: fmt.Sprintf(
				"Produce variation %d of %d on the design below. Keep its content but take the visual language somewhere new.\n\n%s",
				i+1, s.slots, source.Text,
			),
		}
	}
	return s.run(ctx, fmt.Sprintf("Variations on %q", source.Label), nil, slots)
}

// MoreLikeThis starts a session seeded with the source artifact as an
// already-complete reference slot; the remaining slots generate close
// siblings. No task runs for the reference.
func (s *Studio) MoreLikeThis(ctx context.Context, artifactID string) (Session, error) {
	if s.model == nil {
		return Session{}, fmt.Errorf("studio has no model configured")
	}
	_, source, ok := s.arena.FindArtifact(artifactID)
	if !ok {
		return Session{}, fmt.Errorf("artifact %s not found", artifactID)
	}

	seed := Artifact{
		Label: source.Label + " (original)",
		Text:  source.Text,
	}
	slots := make([]slotSpec, s.slots)
	for i := range slots {
		label := fmt.Sprintf("%s / Take %d", source.Label, i+1)
		slots[i] = slotSpec{
			label:        label,
			instructions: personaInstructions(label),
			prompt: fmt.Sprintf(
				"Produce a close sibling of the design below: same mood, same visual language, different execution.\n\n%s",
				source.Text,
			),
		}
	}
	return s.run(ctx, fmt.Sprintf("More like %q", source.Label), []Artifact{seed}, slots)
}

// BlendStyles starts a session whose slots each merge the visual
// languages of two existing artifacts.
func (s *Studio) BlendStyles(ctx context.Context, firstID, secondID string) (Session, error) {
	if s.model == nil {
		return Session{}, fmt.Errorf("studio has no model configured")
	}
	_, first, ok := s.arena.FindArtifact(firstID)
	if !ok {
		return Session{}, fmt.Errorf("artifact %s not found", firstID)
	}
	_, second, ok := s.arena.FindArtifact(secondID)
	if !ok {
		return Session{}, fmt.Errorf("artifact %s not found", secondID)
	}

	slots := make([]slotSpec, s.slots)
	for i := range slots {
		label := fmt.Sprintf("%s x %s / Blend %d", first.Label, second.Label, i+1)
		slots[i] = slotSpec{
			label:        label,
			instructions: personaInstructions(label),
			prompt: fmt.Sprintf(
				"Blend the two designs below into one. Each blend should weigh the parents differently.\n\nFirst:\n%s\n\nSecond:\n%s",
				first.Text, second.Text,
			),
		}
	}
	return s.run(ctx, fmt.Sprintf("Blend of %q and %q", first.Label, second.Label), nil, slots)
}
