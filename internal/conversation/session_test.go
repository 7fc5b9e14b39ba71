package conversation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/model"
	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
)

type staticTransport struct {
	parts []string
	err   error
	got   []model.ChatMessage
}

func (s *staticTransport) Stream(ctx context.Context, messages []model.ChatMessage) (ai.TextStream, error) {
	s.got = messages
	if s.err != nil {
		return nil, s.err
	}
	return ai.NewStaticStream(s.parts...), nil
}

type chanStream struct {
	ctx context.Context
	ch  <-chan string
}

func (c *chanStream) Next() (string, error) {
	select {
	case s, ok := <-c.ch:
		if !ok {
			return "", io.EOF
		}
		return s, nil
	case <-c.ctx.Done():
		return "", c.ctx.Err()
	}
}

func (c *chanStream) Close() error { return nil }

type chanTransport struct {
	ch chan string
}

func (c *chanTransport) Stream(ctx context.Context, messages []model.ChatMessage) (ai.TextStream, error) {
	return &chanStream{ctx: ctx, ch: c.ch}, nil
}

type failAfterStream struct {
	parts []string
	err   error
}

func (f *failAfterStream) Next() (string, error) {
	if len(f.parts) == 0 {
		return "", f.err
	}
	p := f.parts[0]
	f.parts = f.parts[1:]
	return p, nil
}

func (f *failAfterStream) Close() error { return nil }

type failAfterTransport struct {
	stream *failAfterStream
}

func (f *failAfterTransport) Stream(ctx context.Context, messages []model.ChatMessage) (ai.TextStream, error) {
	return f.stream, nil
}

func TestSubmitSettlesOK(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, &memStorage{})
	store.SeedWelcome(ctx, "Hello! I'm Bingio")
	tr := &staticTransport{parts: []string{"Try ", "Paddington ", "[SOURCE 1]."}}
	sess := NewSession(store, tr)
	msg, err := sess.Submit(ctx, "  feeling low, watching alone ")
	require.NoError(t, err)
	require.Equal(t, "Try Paddington [SOURCE 1].", msg.Text())
	require.Equal(t, OutcomeOK, msg.Outcome)
	require.True(t, msg.Settled())

	msgs := store.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "feeling low, watching alone", msgs[1].Text())
	require.Equal(t, 0, store.InFlight())
	_, ok := store.Durations()[msg.ID]
	require.True(t, ok)

	require.Len(t, tr.got, 2)
	require.Equal(t, "assistant", tr.got[0].Role)
	require.Equal(t, "user", tr.got[1].Role)
	require.Equal(t, "feeling low, watching alone", tr.got[1].Content)
}

func TestSubmitBlankReplySettlesAsIDontKnow(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, &memStorage{})
	msg, err := NewSession(store, &staticTransport{}).Submit(ctx, "anything with dragons")
	require.NoError(t, err)
	require.Equal(t, model.IDontKnowText, msg.Text())
	require.Equal(t, OutcomeOK, msg.Outcome)
}

func TestSubmitWithoutHistory(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, nil)
	store.SeedWelcome(ctx, "Hello")
	tr := &staticTransport{parts: []string{"ok"}}
	_, err := NewSession(store, tr, WithHistory(false)).Submit(ctx, "hi")
	require.NoError(t, err)
	require.Len(t, tr.got, 1)
}

func TestSubmitEmptyText(t *testing.T) {
	_, err := NewSession(Open(context.Background(), nil), &staticTransport{}).Submit(context.Background(), "   ")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestSubmitResponseErrorShowsBody(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, nil)
	msg, err := NewSession(store, &staticTransport{err: &ResponseError{StatusCode: 502, Body: "[Error: embedding service unavailable]"}}).Submit(ctx, "hi")
	require.NoError(t, err)
	require.Equal(t, "[Error: embedding service unavailable]", msg.Text())
	require.Equal(t, OutcomeError, msg.Outcome)

	msg, err = NewSession(store, &staticTransport{err: &ResponseError{StatusCode: 500}}).Submit(ctx, "hi")
	require.NoError(t, err)
	require.Equal(t, emptyResponseText, msg.Text())
}

func TestSubmitTransportError(t *testing.T) {
	ctx := context.Background()
	msg, err := NewSession(Open(ctx, nil), &staticTransport{err: errors.New("connection refused")}).Submit(ctx, "hi")
	require.NoError(t, err)
	require.Equal(t, "[Error: connection refused]", msg.Text())
	require.Equal(t, OutcomeError, msg.Outcome)
}

func TestSubmitMidStreamFailureKeepsPartial(t *testing.T) {
	ctx := context.Background()
	tr := &failAfterTransport{stream: &failAfterStream{parts: []string{"Try Up"}, err: errors.New("reset")}}
	msg, err := NewSession(Open(ctx, nil), tr).Submit(ctx, "hi")
	require.NoError(t, err)
	require.Equal(t, "Try Up\n\n[Error: reset]", msg.Text())
	require.Equal(t, OutcomeError, msg.Outcome)
}

func TestSubmitInterruptedMarkerIsError(t *testing.T) {
	ctx := context.Background()
	tr := &staticTransport{parts: []string{"Try Up", "\n\n" + model.GenerationInterruptedText}}
	msg, err := NewSession(Open(ctx, nil), tr).Submit(ctx, "hi")
	require.NoError(t, err)
	require.Equal(t, OutcomeError, msg.Outcome)
}

func TestCancelMidStream(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, &memStorage{})
	tr := &chanTransport{ch: make(chan string)}
	sess := NewSession(store, tr)

	done := make(chan Message, 1)
	go func() {
		msg, _ := sess.Submit(ctx, "something cozy")
		done <- msg
	}()

	tr.ch <- "Try "
	tr.ch <- "Paddington"
	var id string
	require.Eventually(t, func() bool {
		msgs := store.Messages()
		if len(msgs) != 2 {
			return false
		}
		id = msgs[1].ID
		return msgs[1].Text() == "Try Paddington"
	}, time.Second, 5*time.Millisecond)

	require.True(t, store.Cancel(ctx, id))
	msg := <-done
	require.Equal(t, id, msg.ID)
	require.Equal(t, "Try Paddington", msg.Text())
	require.Equal(t, OutcomeCancelled, msg.Outcome)
	require.False(t, msg.Streaming())
	require.False(t, store.Patch(ctx, id, TextPatch("Try Paddington 2", StatusStreaming)))
	require.Equal(t, 0, store.InFlight())
}

func TestCallerCancellationSettlesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := Open(context.Background(), &memStorage{})
	tr := &chanTransport{ch: make(chan string)}
	done := make(chan Message, 1)
	go func() {
		msg, _ := NewSession(store, tr).Submit(ctx, "hi")
		done <- msg
	}()
	tr.ch <- "partial"
	require.Eventually(t, func() bool {
		msgs := store.Messages()
		return len(msgs) == 2 && msgs[1].Text() == "partial"
	}, time.Second, 5*time.Millisecond)
	cancel()
	msg := <-done
	require.Equal(t, OutcomeCancelled, msg.Outcome)
	require.Equal(t, "partial", msg.Text())
}
