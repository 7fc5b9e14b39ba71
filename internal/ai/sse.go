package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxSSELineSize = 1024 * 1024

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatStreamRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func buildChatMessages(prompt Prompt) []chatMessage {
	msgs := make([]chatMessage, 0, 3)
	if strings.TrimSpace(prompt.System) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: prompt.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt.User})
	if strings.TrimSpace(prompt.Followup) != "" {
		msgs = append(msgs, chatMessage{Role: "user", Content: prompt.Followup})
	}
	return msgs
}

// openChatStream posts an OpenAI compatible chat completion with stream=true.
func openChatStream(ctx context.Context, client *http.Client, name string, endpoint string, headers map[string]string, body chatStreamRequest) (TextStream, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s request failed: %s: %s", name, resp.Status, strings.TrimSpace(string(raw)))
	}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &sseStream{name: name, body: resp.Body, scanner: scanner}, nil
}

type sseStream struct {
	name    string
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			s.done = true
			return "", io.EOF
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", fmt.Errorf("decode %s stream chunk: %w", s.name, err)
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("%s stream error: %s", s.name, chunk.Error.Message)
		}
		var sb strings.Builder
		for _, choice := range chunk.Choices {
			sb.WriteString(choice.Delta.Content)
		}
		if sb.Len() == 0 {
			continue
		}
		return sb.String(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	s.done = true
	return "", io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
