package atelier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atelier-ai/atelier/api"
	"github.com/atelier-ai/atelier/events"
	"github.com/atelier-ai/atelier/internal/broker"
	"github.com/atelier-ai/atelier/pkg/slogx"
	"github.com/atelier-ai/atelier/pkg/uuidx"
	"github.com/atelier-ai/atelier/provider"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// DefaultSlots is how many artifacts a session fans out to.
const DefaultSlots = 5

// DefaultTaskTimeout bounds one task's whole stream consumption.
const DefaultTaskTimeout = 60 * time.Second

const sessionsTopic = "atelier.sessions"

// Structured Outputs uses a subset of JSON schema
// These flags are necessary to comply with the subset
var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// Studio runs generation sessions against one configured model.
type Studio struct {
	slots       int
	model       api.Model
	broker      broker.Broker
	arena       *Arena
	taskTimeout time.Duration
}

var (
	// WithSlots overrides the number of artifacts per session.
	WithSlots = opts.ForName[Studio, int]("slots")

	// WithModel selects the model every slot generates with.
	WithModel = opts.ForName[Studio, api.Model]("model")

	// WithBroker replaces the in-process broker, e.g. with the NATS one.
	WithBroker = opts.ForName[Studio, broker.Broker]("broker")

	// WithArena shares an arena between studios or with an API layer.
	WithArena = opts.ForName[Studio, *Arena]("arena")

	// WithTaskTimeout overrides the wall-clock bound on each task's
	// stream consumption.
	WithTaskTimeout = opts.ForName[Studio, time.Duration]("taskTimeout")
)

func New(options ...opts.Option[Studio]) *Studio {
	studio := &Studio{
		slots:       DefaultSlots,
		broker:      broker.Local(),
		arena:       NewArena(),
		taskTimeout: DefaultTaskTimeout,
	}
	if err := opts.Apply(studio, options); err != nil {
		panic(err)
	}
	return studio
}

// Arena exposes the session store, for API layers that render sessions.
func (s *Studio) Arena() *Arena { return s.arena }

// Subscribe attaches a hook to the session event stream.
func (s *Studio) Subscribe(ctx context.Context, hook events.Hook) (broker.Subscription, error) {
	return s.broker.Topic(ctx, sessionsTopic).Subscribe(ctx, hook)
}

// Generate runs a full session for a prompt. A short structured call
// first names one persona per slot; then every slot streams its own
// take on the prompt concurrently. The returned session is the final
// state; progress is observable through Subscribe while it runs.
//
// Slot failures are recorded in the session, not returned: a session
// where everything went wrong is still a session. The error return is
// reserved for misuse, such as a studio with no model.
func (s *Studio) Generate(ctx context.Context, prompt string) (Session, error) {
	if s.model == nil {
		return Session{}, fmt.Errorf("studio has no model configured")
	}

	labels, err := s.personaLabels(ctx, prompt)
	if err != nil {
		// Nothing has fanned out yet, so one failure owns every slot.
		return s.failedSession(ctx, prompt, err), nil
	}

	slots := make([]slotSpec, s.slots)
	for i := range slots {
		slots[i] = slotSpec{
			label:        labels[i],
			instructions: personaInstructions(labels[i]),
			prompt:       prompt,
		}
	}
	return s.run(ctx, prompt, nil, slots)
}

// slotSpec is everything that differs between one slot's generation
// task and its siblings'.
type slotSpec struct {
	label        string
	instructions string
	prompt       string
}

// run executes the shared session state machine: create, fan out, merge
// until every task is terminal. Seeded artifacts occupy the leading
// slots as already-complete references and get no task.
func (s *Studio) run(ctx context.Context, prompt string, seeded []Artifact, slots []slotSpec) (Session, error) {
	session := Session{
		ID:        uuidx.New(),
		Prompt:    prompt,
		CreatedAt: strfmt.DateTime(time.Now()),
	}
	for i, seed := range seeded {
		seed.ID = ArtifactID(session.ID, i)
		seed.Status = StatusComplete
		session.Artifacts = append(session.Artifacts, seed)
	}
	base := len(seeded)
	for i, spec := range slots {
		session.Artifacts = append(session.Artifacts, Artifact{
			ID:     ArtifactID(session.ID, base+i),
			Label:  spec.label,
			Status: StatusStreaming,
		})
	}
	s.arena.Append(session)

	topic := s.broker.Topic(ctx, sessionsTopic)
	publish(ctx, topic, events.SessionStarted{
		SessionID: session.ID,
		Prompt:    prompt,
		Slots:     len(session.Artifacts),
		Timestamp: now(),
	})

	updates := make(chan taskUpdate)
	for i, spec := range slots {
		req := provider.Request{
			RunID:        uuidx.New(),
			Instructions: spec.instructions,
			Prompt:       spec.prompt,
			Stream:       true,
			Model:        s.model,
		}
		go runTask(ctx, req, ArtifactID(session.ID, base+i), s.taskTimeout, updates)
	}

	// Single merge loop: the only writer for this session's artifacts.
	for remaining := len(slots); remaining > 0; {
		if s.mergeUpdate(ctx, topic, session.ID, <-updates) {
			remaining--
		}
	}

	final, _ := s.arena.Get(session.ID)
	return final, nil
}

// mergeUpdate applies one task update to its session and reports
// whether it settled a slot. A terminal update whose session or
// artifact cannot be found still settles: losing it would leave the
// merge loop waiting forever on a slot that already finished.
func (s *Studio) mergeUpdate(ctx context.Context, topic broker.Topic, sessionID uuid.UUID, update taskUpdate) bool {
	terminal := update.terminal || update.fault != nil

	current, ok := s.arena.Get(sessionID)
	if !ok {
		return terminal
	}
	artifact, ok := current.Artifact(update.artifactID)
	if !ok {
		return terminal
	}

	switch {
	case update.fault != nil:
		artifact.Label = "Error"
		artifact.Text = renderDiagnostic(update.fault)
		artifact.Status = StatusError
		s.arena.replaceArtifact(sessionID, artifact)
		publish(ctx, topic, events.ArtifactFailed{
			SessionID:  sessionID,
			ArtifactID: artifact.ID,
			Fault:      update.fault,
			Timestamp:  now(),
		})

	case update.terminal:
		artifact.Text = stripFences(update.text)
		artifact.Status = StatusComplete
		s.arena.replaceArtifact(sessionID, artifact)
		publish(ctx, topic, events.ArtifactCompleted{
			SessionID:  sessionID,
			ArtifactID: artifact.ID,
			Label:      artifact.Label,
			Text:       artifact.Text,
			Timestamp:  now(),
		})

	default:
		artifact.Text += update.text
		s.arena.replaceArtifact(sessionID, artifact)
		publish(ctx, topic, events.ArtifactChunk{
			SessionID:  sessionID,
			ArtifactID: artifact.ID,
			Text:       update.text,
			Timestamp:  now(),
		})
	}
	return terminal
}

// failedSession records a session whose labeling call failed before
// any task started. Every slot carries the same diagnostic.
func (s *Studio) failedSession(ctx context.Context, prompt string, err error) Session {
	fault := provider.Classify(err, s.model.Name())

	session := Session{
		ID:        uuidx.New(),
		Prompt:    prompt,
		CreatedAt: strfmt.DateTime(time.Now()),
	}
	for i := 0; i < s.slots; i++ {
		session.Artifacts = append(session.Artifacts, Artifact{
			ID:     ArtifactID(session.ID, i),
			Label:  "Error",
			Text:   renderDiagnostic(fault),
			Status: StatusError,
		})
	}
	s.arena.Append(session)

	topic := s.broker.Topic(ctx, sessionsTopic)
	publish(ctx, topic, events.SessionStarted{
		SessionID: session.ID,
		Prompt:    prompt,
		Slots:     len(session.Artifacts),
		Timestamp: now(),
	})
	for _, artifact := range session.Artifacts {
		publish(ctx, topic, events.ArtifactFailed{
			SessionID:  session.ID,
			ArtifactID: artifact.ID,
			Fault:      fault,
			Timestamp:  now(),
		})
	}
	return session
}

type personaList struct {
	Labels []string `json:"labels" jsonschema:"description=One short evocative name per design direction"`
}

// personaLabels runs the short non-streaming structured call that names
// one design direction per slot, so sibling artifacts diverge instead
// of converging on the model's default taste.
func (s *Studio) personaLabels(ctx context.Context, prompt string) ([]string, error) {
	req := provider.Request{
		RunID:        uuidx.New(),
		Instructions: "You name design directions. Answer with JSON only.",
		Prompt: fmt.Sprintf(
			"Name %d sharply distinct design personas for this brief. Two words each at most.\n\nBrief: %s",
			s.slots, prompt,
		),
		ResponseSchema: &provider.StructuredOutput{
			Name:        "personas",
			Description: "Short evocative names for design directions",
			Schema:      reflector.Reflect(personaList{}),
		},
		Model: s.model,
	}

	ch, err := s.model.Provider().Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	// Same wall-clock bound as the generation tasks: a silent labeling
	// stream must not hang the session before it even fans out.
	timer := time.NewTimer(s.taskTimeout)
	defer timer.Stop()

	var text string
collect:
	for {
		select {
		case <-timer.C:
			return nil, &provider.Fault{
				Kind:     provider.KindTimeout,
				Provider: s.model.Name(),
				Status:   http.StatusGatewayTimeout,
				Message:  fmt.Sprintf("%s: stream consumption exceeded %s", s.model.Name(), s.taskTimeout),
			}
		case event, ok := <-ch:
			if !ok {
				break collect
			}
			switch event := event.(type) {
			case provider.Response:
				text = event.Text
			case provider.Error:
				return nil, event
			}
		}
	}

	labels := make([]string, 0, s.slots)
	for _, result := range gjson.Get(stripFences(text), "labels").Array() {
		if name := strings.TrimSpace(result.String()); name != "" {
			labels = append(labels, name)
		}
	}
	// A model that returns too few names still gets a full fan-out.
	for len(labels) < s.slots {
		labels = append(labels, fmt.Sprintf("Variant %d", len(labels)+1))
	}
	return labels[:s.slots], nil
}

const houseStyle = "You produce a single self-contained HTML snippet with inline styles. " +
	"No external assets, no scripts. Respond with the HTML only: no markdown fences, no commentary."

func personaInstructions(label string) string {
	return fmt.Sprintf("%s\n\nDesign direction: %s. Commit to it fully; this take must read differently from any sibling direction.",
		houseStyle, label)
}

func publish(ctx context.Context, topic broker.Topic, event events.Event) {
	if err := topic.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish session event", slogx.Error(err))
	}
}

func now() strfmt.DateTime { return strfmt.DateTime(time.Now()) }
