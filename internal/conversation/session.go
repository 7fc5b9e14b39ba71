package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/model"
	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
)

const emptyResponseText = "Error: model did not return a response"

// Transport opens the assistant stream for a conversation.
type Transport interface {
	Stream(ctx context.Context, messages []model.ChatMessage) (ai.TextStream, error)
}

// ResponseError is a non-success reply whose body is shown to the user verbatim.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("chat request failed with status %d", e.StatusCode)
}

type Session struct {
	store     *Store
	transport Transport
	history   bool
}

type SessionOption func(*Session)

// WithHistory sends earlier settled turns along with the new message.
func WithHistory(v bool) SessionOption {
	return func(s *Session) {
		s.history = v
	}
}

func NewSession(store *Store, transport Transport, opts ...SessionOption) *Session {
	s := &Session{store: store, transport: transport, history: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) requestMessages(text string) []model.ChatMessage {
	out := make([]model.ChatMessage, 0)
	if s.history {
		for _, m := range s.store.Messages() {
			if !m.Settled() || m.Outcome != OutcomeOK {
				continue
			}
			out = append(out, model.ChatMessage{Role: string(m.Role), Content: m.Text()})
		}
	}
	return append(out, model.ChatMessage{Role: model.RoleUser, Content: text})
}

// Submit runs one turn and returns the settled assistant message. Transport
// failures settle the message with Outcome error rather than returning an error.
func (s *Session) Submit(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("%w: empty message", appErr.ErrInvalid)
	}
	reqMessages := s.requestMessages(text)
	// store writes must land even after the turn is cancelled
	storeCtx := context.WithoutCancel(ctx)
	s.store.Append(storeCtx, Message{Role: RoleUser, Parts: []Part{TextPart(text)}})
	placeholder := s.store.Append(storeCtx, Message{Role: RoleAssistant, Status: StatusPending})
	id := placeholder.ID

	streamCtx := s.store.Begin(ctx, id)
	defer s.store.Release(id)
	start := time.Now()
	defer func() {
		s.store.RecordDuration(storeCtx, id, time.Since(start).Milliseconds())
	}()

	stream, err := s.transport.Stream(streamCtx, reqMessages)
	if err != nil {
		s.settleFailure(storeCtx, streamCtx, id, "", err)
		return s.final(id), nil
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil && streamCtx.Err() != nil {
			err = streamCtx.Err()
		}
		if err != nil {
			s.settleFailure(storeCtx, streamCtx, id, sb.String(), err)
			return s.final(id), nil
		}
		sb.WriteString(chunk)
		s.store.Patch(storeCtx, id, TextPatch(sb.String(), StatusStreaming))
	}
	full := sb.String()
	outcome := OutcomeOK
	if strings.HasSuffix(strings.TrimSpace(full), model.GenerationInterruptedText) {
		outcome = OutcomeError
	}
	if strings.TrimSpace(full) == "" {
		full = model.IDontKnowText
	}
	s.store.Patch(storeCtx, id, SettlePatch(full, outcome))
	return s.final(id), nil
}

func (s *Session) settleFailure(ctx context.Context, streamCtx context.Context, id string, partial string, err error) {
	if streamCtx.Err() != nil {
		s.store.Cancel(ctx, id)
		return
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		body := respErr.Body
		if strings.TrimSpace(body) == "" {
			body = emptyResponseText
		}
		s.store.Patch(ctx, id, SettlePatch(body, OutcomeError))
		return
	}
	logutil.GetLogger(ctx).Warn("assistant stream failed", zap.String("id", id), zap.Error(err))
	text := fmt.Sprintf("[Error: %s]", err.Error())
	if partial != "" {
		text = partial + "\n\n" + text
	}
	s.store.Patch(ctx, id, SettlePatch(text, OutcomeError))
}

func (s *Session) final(id string) Message {
	msg, _ := s.store.Message(id)
	return msg
}
