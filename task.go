package atelier

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/atelier-ai/atelier/provider"
)

// taskUpdate is one message from a generation task to the session merge
// loop. Non-terminal updates carry an increment; a terminal update
// carries either the complete text or a fault.
type taskUpdate struct {
	artifactID string
	text       string
	terminal   bool
	fault      *provider.Fault
}

// runTask drives one provider generation and forwards its progress to
// the merge loop. Consumption of the whole stream is bounded by a
// wall-clock timer: a provider whose channel stays open but silent
// fails this one slot instead of wedging the session. Tasks never touch
// the arena; all session writes go through the merge loop so exactly
// one goroutine mutates a session.
func runTask(ctx context.Context, req provider.Request, artifactID string, timeout time.Duration, out chan<- taskUpdate) {
	providerName := req.Model.Name()

	ch, err := req.Model.Provider().Generate(ctx, req)
	if err != nil {
		out <- taskUpdate{artifactID: artifactID, terminal: true, fault: provider.Classify(err, providerName)}
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var final string
	var acc strings.Builder
loop:
	for {
		select {
		case <-timer.C:
			out <- taskUpdate{artifactID: artifactID, terminal: true, fault: &provider.Fault{
				Kind:     provider.KindTimeout,
				Provider: providerName,
				Status:   http.StatusGatewayTimeout,
				Message:  fmt.Sprintf("%s: stream consumption exceeded %s", providerName, timeout),
			}}
			return
		case event, ok := <-ch:
			if !ok {
				break loop
			}
			switch event := event.(type) {
			case provider.Chunk:
				acc.WriteString(event.Text)
				out <- taskUpdate{artifactID: artifactID, text: event.Text}
			case provider.Response:
				final = event.Text
			case provider.Error:
				out <- taskUpdate{artifactID: artifactID, terminal: true, fault: provider.Classify(event, providerName)}
				return
			}
		}
	}

	if final == "" {
		final = acc.String()
	}
	if stripFences(final) == "" {
		out <- taskUpdate{artifactID: artifactID, terminal: true, fault: &provider.Fault{
			Kind:     provider.KindUnknown,
			Provider: providerName,
			Status:   http.StatusInternalServerError,
			Message:  fmt.Sprintf("%s returned no content", providerName),
		}}
		return
	}

	out <- taskUpdate{artifactID: artifactID, text: final, terminal: true}
}

// renderDiagnostic builds the HTML panel shown in a slot whose task
// failed, so a broken artifact still renders something explanatory.
func renderDiagnostic(fault *provider.Fault) string {
	var b strings.Builder
	b.WriteString(`<div class="artifact-error"><h3>Generation failed</h3>`)
	fmt.Fprintf(&b, "<p>%s</p><ul>", html.EscapeString(fault.Message))
	for _, cause := range commonCauses(fault) {
		fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(cause))
	}
	b.WriteString("</ul></div>")
	return b.String()
}

func commonCauses(fault *provider.Fault) []string {
	switch fault.Kind {
	case provider.KindAuth:
		return []string{"The provider API key is missing, expired, or lacks access to this model."}
	case provider.KindRateLimited:
		return []string{
			"The provider is throttling requests.",
			"Retry in a moment, or lower the number of concurrent slots.",
		}
	case provider.KindModelNotFound:
		return []string{"The configured model id is not available on this account."}
	case provider.KindRequestTooLarge:
		return []string{"The prompt exceeds the model's context window. Shorten the brief or the source artifact."}
	case provider.KindBilling:
		return []string{"The provider account is out of credit."}
	case provider.KindTimeout:
		return []string{
			"The provider stopped responding before the stream finished.",
			"Retry; transient upstream slowness is the usual cause.",
		}
	case provider.KindTransport, provider.KindMalformedStream:
		return []string{"The connection to the provider broke mid-stream."}
	default:
		return []string{"Unexpected provider error. The message above is the upstream text, verbatim."}
	}
}
