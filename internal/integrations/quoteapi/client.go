// Package quoteapi talks to the upstream quote creation endpoint.
package quoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultPath is the creation endpoint relative to the base URL.
const DefaultPath = "/quote/upsert"

const maxPlainMessage = 200

// Response is a successful creation response. Raw is the body exactly as received; the
// other fields are decoded from it when present.
type Response struct {
	Raw       json.RawMessage  `json:"-"`
	QuoteID   any              `json:"QuoteID,omitempty"`
	QuoteCode string           `json:"QuoteCode,omitempty"`
	Quotes    []map[string]any `json:"Quotes,omitempty"`
}

// Error is a non-2xx answer from the endpoint.
type Error struct {
	Status  int
	Message string
	Body    []byte
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("quote api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("quote api: status %d", e.Status)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Path    string
	Token   string
	Timeout time.Duration
}

// Client wraps calls to the quote creation endpoint. It does not retry; retry and backoff
// belong to whoever owns the transport.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(cfg Config) *Client {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		token:    cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Submit posts the payload and returns the decoded response.
func (c *Client) Submit(ctx context.Context, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Status: resp.StatusCode, Message: errorMessage(raw), Body: raw}
	}
	return decodeResponse(raw)
}

// decodeResponse reads each known field on its own so one unexpected type does not lose
// the others. Bodies that are not JSON objects are returned verbatim.
func decodeResponse(raw []byte) (*Response, error) {
	out := &Response{Raw: json.RawMessage(raw)}
	if len(bytes.TrimSpace(raw)) == 0 {
		out.Raw = json.RawMessage("null")
		return out, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out, nil
	}
	if v, ok := fields["QuoteID"]; ok {
		out.QuoteID, _ = decodeValue(v)
	}
	if v, ok := fields["QuoteCode"]; ok {
		out.QuoteCode = scalarText(v)
	}
	if v, ok := fields["Quotes"]; ok {
		out.Quotes = decodeQuotes(v)
	}
	return out, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	err := dec.Decode(&v)
	return v, err
}

// scalarText renders a string or number field as text; other kinds give "".
func scalarText(raw json.RawMessage) string {
	v, err := decodeValue(raw)
	if err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return ""
}

// decodeQuotes keeps every element that is a JSON object and skips the rest.
func decodeQuotes(raw json.RawMessage) []map[string]any {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	quotes := make([]map[string]any, 0, len(items))
	for _, item := range items {
		v, err := decodeValue(item)
		if err != nil {
			continue
		}
		if q, ok := v.(map[string]any); ok {
			quotes = append(quotes, q)
		}
	}
	if len(quotes) == 0 {
		return nil
	}
	return quotes
}

// errorMessage pulls a human readable message from an error body.
func errorMessage(raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxPlainMessage {
			msg = msg[:maxPlainMessage]
		}
		return msg
	}
	for _, key := range []string{"message", "Message", "error", "Error"} {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
