package ai

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingStream struct {
	parts []string
	err   error
}

func (s *failingStream) Next() (string, error) {
	if len(s.parts) == 0 {
		return "", s.err
	}
	p := s.parts[0]
	s.parts = s.parts[1:]
	return p, nil
}

func (s *failingStream) Close() error { return nil }

func TestCollectConcatenatesInOrder(t *testing.T) {
	text, err := Collect(NewStaticStream("Try ", "Paddington ", "[SOURCE 1]."))
	require.NoError(t, err)
	require.Equal(t, "Try Paddington [SOURCE 1].", text)
}

func TestCollectReturnsPartialOnError(t *testing.T) {
	boom := errors.New("boom")
	text, err := Collect(&failingStream{parts: []string{"a", "b"}, err: boom})
	require.ErrorIs(t, err, boom)
	require.Equal(t, "ab", text)
}

func TestWithContextStopsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := WithContext(ctx, NewStaticStream("one", "two", "three"))
	chunk, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "one", chunk)
	cancel()
	_, err = s.Next()
	require.ErrorIs(t, err, context.Canceled)
	_, err = s.Next()
	require.ErrorIs(t, err, context.Canceled)
}

func TestStaticStreamEOF(t *testing.T) {
	s := NewStaticStream()
	_, err := s.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestDefaultIfBlank(t *testing.T) {
	text, err := Collect(DefaultIfBlank(NewStaticStream(), "I don't know."))
	require.NoError(t, err)
	require.Equal(t, "I don't know.", text)

	text, err = Collect(DefaultIfBlank(NewStaticStream("Try ", "Up."), "I don't know."))
	require.NoError(t, err)
	require.Equal(t, "Try Up.", text)

	boom := errors.New("boom")
	_, err = Collect(DefaultIfBlank(&failingStream{err: boom}, "I don't know."))
	require.ErrorIs(t, err, boom)
}
