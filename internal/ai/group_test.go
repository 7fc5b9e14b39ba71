package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	calls  int
	stream TextStream
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, prompt Prompt, cfg DecodingConfig) (TextStream, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

func TestGroupGeneratorFallsBackWhenOpening(t *testing.T) {
	first := &stubGenerator{err: ErrUnavailable}
	second := &stubGenerator{stream: NewStaticStream("ok")}
	g := NewGroupGenerator([]GeneratorEntry{{Name: "a", Generator: first}, {Name: "b", Generator: second}})
	stream, err := g.Generate(context.Background(), Prompt{User: "q"}, DecodingConfig{})
	require.NoError(t, err)
	text, err := Collect(stream)
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)
}

func TestGroupGeneratorDoesNotSwitchMidStream(t *testing.T) {
	boom := errors.New("boom")
	first := &stubGenerator{stream: &failingStream{parts: []string{"half"}, err: boom}}
	second := &stubGenerator{stream: NewStaticStream("other")}
	g := NewGroupGenerator([]GeneratorEntry{{Name: "a", Generator: first}, {Name: "b", Generator: second}})
	stream, err := g.Generate(context.Background(), Prompt{User: "q"}, DecodingConfig{})
	require.NoError(t, err)
	text, err := Collect(stream)
	require.ErrorIs(t, err, boom)
	require.Equal(t, "half", text)
	require.Equal(t, 0, second.calls)
}

func TestGroupGeneratorAllFail(t *testing.T) {
	boom := errors.New("boom")
	g := NewGroupGenerator([]GeneratorEntry{{Name: "a", Generator: &stubGenerator{err: boom}}})
	_, err := g.Generate(context.Background(), Prompt{User: "q"}, DecodingConfig{})
	require.ErrorIs(t, err, boom)
	require.Nil(t, NewGroupGenerator(nil))
}
