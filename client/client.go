// Package client talks to a remote atelier server. It wraps the two
// generation endpoints, reassembling streamed frames into text
// increments and variation streams into parsed records, so a caller
// gets the same shapes whether generation runs in-process or behind
// HTTP.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/atelier-ai/atelier/extract"
	"github.com/atelier-ai/atelier/sse"
)

// Client issues generation requests against one atelier server.
type Client struct {
	baseURL  string
	hc       *http.Client
	consumer *sse.Consumer
}

var (
	// WithHTTPClient replaces the underlying http.Client.
	WithHTTPClient = opts.ForName[Client, *http.Client]("hc")

	// WithConsumer replaces the stream consumer, e.g. to change its
	// timeout.
	WithConsumer = opts.ForName[Client, *sse.Consumer]("consumer")
)

func New(baseURL string, options ...opts.Option[Client]) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		hc:       http.DefaultClient,
		consumer: sse.NewConsumer(),
	}
	if err := opts.Apply(c, options); err != nil {
		panic(err)
	}
	return c
}

// GenerateRequest mirrors the server's request body.
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Variation is one extracted record from a variations stream.
type Variation struct {
	Name string `json:"name"`
	HTML string `json:"html"`
}

// Generate runs a non-streaming generation and returns the full text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	req.Stream = false
	resp, err := c.post(ctx, "/generate", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var tr struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("invalid response body: %w", err)
	}
	return tr.Text, nil
}

// GenerateStream runs a streaming generation and returns the lazy
// sequence of text increments. In-band faults surface as the error
// side of the sequence and end it.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest) (iter.Seq2[string, error], error) {
	req.Stream = true
	resp, err := c.post(ctx, "/generate", req)
	if err != nil {
		return nil, err
	}

	return func(yield func(string, error) bool) {
		defer resp.Body.Close()
		for increment, ierr := range c.consumer.Increments(ctx, resp.Body) {
			if !yield(increment, ierr) || ierr != nil {
				return
			}
		}
	}, nil
}

// Variations runs a variations generation and yields each record as it
// completes. Text between records is discarded; stray JSON objects
// missing the record fields are skipped.
func (c *Client) Variations(ctx context.Context, req GenerateRequest) (iter.Seq2[Variation, error], error) {
	resp, err := c.post(ctx, "/variations", req)
	if err != nil {
		return nil, err
	}

	return func(yield func(Variation, error) bool) {
		defer resp.Body.Close()
		for record, rerr := range extract.Records(c.consumer.Increments(ctx, resp.Body)) {
			if rerr != nil {
				yield(Variation{}, rerr)
				return
			}
			name := record.Get("name")
			html := record.Get("html")
			if !name.Exists() || !html.Exists() {
				continue
			}
			if !yield(Variation{Name: name.String(), HTML: html.String()}, nil) {
				return
			}
		}
	}, nil
}

// Models lists the model ids the server accepts.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var mr struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("invalid response body: %w", err)
	}
	return mr.Models, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, responseError(resp)
	}
	return resp, nil
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
