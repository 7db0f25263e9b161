package sse

import (
	"fmt"
	"io"
	"net/http"

	"github.com/atelier-ai/atelier/provider"
)

// Encoder writes frames onto a persistent response channel. Every frame
// is flushed immediately so increments reach the consumer as they are
// produced, not when the handler returns.
//
// Close must run on every exit path, including after WriteFault: the
// terminal frame is what releases a waiting consumer.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

// NewEncoder prepares w for event streaming and returns the encoder.
// It fails when the ResponseWriter cannot flush, since an unflushable
// stream would buffer until the generation completes.
func NewEncoder(w http.ResponseWriter) (*Encoder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is unsupported by response writer")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Encoder{w: w, flusher: flusher}, nil
}

// WriteText emits one Data frame carrying a text increment.
func (e *Encoder) WriteText(text string) error {
	if e.closed {
		return fmt.Errorf("write on closed stream")
	}
	payload, err := encodeText(text)
	if err != nil {
		return err
	}
	return e.writeFrame(payload)
}

// WriteFault emits an in-band error frame. The stream is still open
// afterwards; callers follow up with Close.
func (e *Encoder) WriteFault(fault *provider.Fault) error {
	if e.closed {
		return fmt.Errorf("write on closed stream")
	}
	payload, err := encodeFault(fault)
	if err != nil {
		return err
	}
	return e.writeFrame(payload)
}

// Close emits the terminal sentinel exactly once.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.writeFrame([]byte(Terminal))
}

func (e *Encoder) writeFrame(payload []byte) error {
	if _, err := fmt.Fprintf(e.w, "%s %s\n\n", dataPrefix, payload); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
