package ai

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Collect drains a stream. On failure the text accumulated so far is returned with the error.
func Collect(s TextStream) (string, error) {
	defer s.Close()
	var sb strings.Builder
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
}

type staticStream struct {
	parts []string
	pos   int
}

// NewStaticStream returns a stream that yields parts in order.
func NewStaticStream(parts ...string) TextStream {
	return &staticStream{parts: parts}
}

func (s *staticStream) Next() (string, error) {
	if s.pos >= len(s.parts) {
		return "", io.EOF
	}
	part := s.parts[s.pos]
	s.pos++
	return part, nil
}

func (s *staticStream) Close() error {
	return nil
}

type ctxStream struct {
	ctx   context.Context
	inner TextStream
}

// WithContext stops delivering increments once ctx is done.
func WithContext(ctx context.Context, s TextStream) TextStream {
	return &ctxStream{ctx: ctx, inner: s}
}

func (s *ctxStream) Next() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	chunk, err := s.inner.Next()
	if err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	return chunk, nil
}

func (s *ctxStream) Close() error {
	return s.inner.Close()
}

type defaultStream struct {
	inner    TextStream
	fallback string
	seen     bool
	done     bool
}

// DefaultIfBlank yields fallback at the end of s when s produced no visible text.
func DefaultIfBlank(s TextStream, fallback string) TextStream {
	return &defaultStream{inner: s, fallback: fallback}
}

func (s *defaultStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	chunk, err := s.inner.Next()
	if errors.Is(err, io.EOF) && !s.seen {
		s.done = true
		return s.fallback, nil
	}
	if err == nil && strings.TrimSpace(chunk) != "" {
		s.seen = true
	}
	return chunk, err
}

func (s *defaultStream) Close() error {
	return s.inner.Close()
}
