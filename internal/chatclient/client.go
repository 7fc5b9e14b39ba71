package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/conversation"
	"github.com/xxxsen/bingio/internal/model"
)

const chatPath = "/api/v1/chat"

type chatRequest struct {
	Messages []model.ChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type chatResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to the chat endpoint and implements conversation.Transport.
type Client struct {
	baseURL string
	client  *http.Client
	stream  bool
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithStreaming selects chunked text replies (default) or a single JSON reply.
func WithStreaming(v bool) Option {
	return func(cl *Client) {
		cl.stream = v
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		stream:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ conversation.Transport = (*Client)(nil)

func (c *Client) Stream(ctx context.Context, messages []model.ChatMessage) (ai.TextStream, error) {
	data, err := json.Marshal(chatRequest{Messages: messages, Stream: c.stream})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &conversation.ResponseError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if !c.stream {
		defer resp.Body.Close()
		var out chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode chat response: %w", err)
		}
		return ai.NewStaticStream(out.Content), nil
	}
	return &bodyStream{body: resp.Body, buf: make([]byte, 4096)}, nil
}

// bodyStream yields the response body as text, never splitting a UTF-8 sequence.
type bodyStream struct {
	body    io.ReadCloser
	buf     []byte
	pending []byte
}

func (b *bodyStream) Next() (string, error) {
	for {
		n, err := b.body.Read(b.buf)
		if n > 0 {
			b.pending = append(b.pending, b.buf[:n]...)
			cut := completePrefix(b.pending)
			if cut > 0 {
				out := string(b.pending[:cut])
				b.pending = append(b.pending[:0], b.pending[cut:]...)
				return out, nil
			}
		}
		if err == io.EOF {
			if len(b.pending) > 0 {
				out := string(b.pending)
				b.pending = nil
				return out, nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
	}
}

func (b *bodyStream) Close() error {
	return b.body.Close()
}

// completePrefix returns the length of the longest prefix of p that does not
// end inside a multi-byte sequence.
func completePrefix(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if utf8.FullRune(p[i:]) {
				return len(p)
			}
			return i
		}
	}
	return len(p)
}
