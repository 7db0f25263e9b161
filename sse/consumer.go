package sse

import (
	"bufio"
	"context"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/atelier-ai/atelier/provider"
	"github.com/fogfish/opts"
	"github.com/tidwall/gjson"
)

// DefaultTimeout bounds one whole stream consumption wall-clock.
const DefaultTimeout = 60 * time.Second

const maxFrameBytes = 1024 * 1024

// WithTimeout overrides the wall-clock bound for a whole consumption.
var WithTimeout = opts.ForName[Consumer, time.Duration]("timeout")

// Consumer reassembles frames from a persistent channel into a lazy
// sequence of text increments. It tolerates frames split at arbitrary
// byte boundaries, raises typed faults for in-band error frames and
// transport failures, and enforces a wall-clock timeout over the whole
// consumption.
type Consumer struct {
	timeout time.Duration
}

func NewConsumer(options ...opts.Option[Consumer]) *Consumer {
	c := &Consumer{timeout: DefaultTimeout}
	if err := opts.Apply(c, options); err != nil {
		panic(err)
	}
	return c
}

type frame struct {
	text  string
	fault *provider.Fault
	done  bool
}

// Increments decodes the stream of frames from r. The sequence ends on
// the terminal sentinel or reader exhaustion; an in-band error frame,
// a transport failure, a malformed frame, or timeout expiry yields a
// *provider.Fault and ends the sequence. A stream that ends before any
// frame arrived is a transport fault, distinct from a stream whose
// frames carried empty text.
func (c *Consumer) Increments(ctx context.Context, r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		frames := make(chan frame)
		scanErrs := make(chan error, 1)
		stop := make(chan struct{})
		defer close(stop)

		go scanFrames(r, frames, scanErrs, stop)

		timer := time.NewTimer(c.timeout)
		defer timer.Stop()

		var sawFrame bool
		for {
			select {
			case <-ctx.Done():
				yield("", provider.Classify(ctx.Err(), "stream"))
				return
			case <-timer.C:
				yield("", &provider.Fault{
					Kind:    provider.KindTimeout,
					Status:  http.StatusGatewayTimeout,
					Message: "stream consumption exceeded " + c.timeout.String(),
				})
				return
			case err := <-scanErrs:
				yield("", &provider.Fault{
					Kind:    provider.KindTransport,
					Status:  http.StatusBadGateway,
					Message: "stream read failed: " + err.Error(),
				})
				return
			case fr, ok := <-frames:
				if !ok {
					if !sawFrame {
						yield("", &provider.Fault{
							Kind:    provider.KindTransport,
							Status:  http.StatusBadGateway,
							Message: "stream ended before any frame was received",
						})
					}
					return
				}
				sawFrame = true
				switch {
				case fr.done:
					return
				case fr.fault != nil:
					yield("", fr.fault)
					return
				default:
					if !yield(fr.text, nil) {
						return
					}
				}
			}
		}
	}
}

// scanFrames splits the byte stream into frames: `data:` lines
// accumulate until a blank line closes the frame. Reads block only
// here; everything between reads is synchronous parsing.
func scanFrames(r io.Reader, frames chan<- frame, scanErrs chan<- error, stop <-chan struct{}) {
	defer close(frames)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameBytes)

	var data strings.Builder
	var inFrame bool

	dispatch := func() bool {
		if !inFrame {
			return true
		}
		fr := parseFrame(data.String())
		data.Reset()
		inFrame = false
		select {
		case frames <- fr:
			return !fr.done && fr.fault == nil
		case <-stop:
			return false
		}
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "":
			if !dispatch() {
				return
			}
		case strings.HasPrefix(line, ":"):
			// comment line, keep-alive chatter
		case strings.HasPrefix(line, dataPrefix):
			part := strings.TrimPrefix(line, dataPrefix)
			part = strings.TrimPrefix(part, " ")
			if inFrame {
				data.WriteString("\n")
			}
			data.WriteString(part)
			inFrame = true
		default:
			// unknown SSE fields (event:, id:, retry:) carry nothing here
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case scanErrs <- err:
		case <-stop:
		}
		return
	}

	// frame closed by EOF instead of a blank line
	dispatch()
}

func parseFrame(payload string) frame {
	if strings.TrimSpace(payload) == Terminal {
		return frame{done: true}
	}

	if !gjson.Valid(payload) {
		return frame{fault: &provider.Fault{
			Kind:    provider.KindMalformedStream,
			Status:  http.StatusBadGateway,
			Message: "malformed frame payload: " + snippet(payload),
		}}
	}

	parsed := gjson.Parse(payload)
	if errField := parsed.Get("error"); errField.Exists() {
		return frame{fault: framePayload{
			Error:    errField.String(),
			Kind:     provider.Kind(parsed.Get("kind").String()),
			Provider: parsed.Get("provider").String(),
			Status:   int(parsed.Get("status").Int()),
		}.fault()}
	}

	return frame{text: parsed.Get("text").String()}
}

func snippet(s string) string {
	const max = 120
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
