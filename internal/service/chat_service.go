package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/model"
	"github.com/xxxsen/bingio/internal/moderation"
	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
	"github.com/xxxsen/bingio/internal/prompt"
	"github.com/xxxsen/bingio/internal/retrieval"
)

const (
	OutcomeOK              = "ok"
	OutcomeUngrounded      = "ungrounded"
	OutcomeDenied          = "denied"
	OutcomeInvalid         = "invalid"
	OutcomeTransportError  = "transport_error"
	OutcomeModerationError = "moderation_error"
	OutcomeGenerationError = "generation_error"
	OutcomeInterrupted     = "interrupted"
	OutcomeCancelled       = "cancelled"
)

// GenerationError reports a failed or non-success model response.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type ModerationError struct {
	Err error
}

func (e *ModerationError) Error() string {
	return "moderation unavailable: " + e.Err.Error()
}

func (e *ModerationError) Unwrap() error {
	return e.Err
}

type Moderator interface {
	Check(ctx context.Context, text string) (moderation.Decision, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, threshold float64) (*retrieval.GroundedContext, error)
}

type ChatSource struct {
	Source string  `json:"source"`
	Score  float32 `json:"score"`
}

// ChatReply carries the assistant text as a stream. Short-circuited replies
// (denial, ungrounded) are static streams. The caller must Close the stream.
type ChatReply struct {
	Outcome string
	Stream  ai.TextStream
	Sources []ChatSource
}

type ChatOptions struct {
	TopK      int
	Threshold float64
	Decoding  ai.DecodingConfig
	Timeout   time.Duration
}

type ChatService struct {
	moderator Moderator
	retriever Retriever
	builder   *prompt.Builder
	generator ai.IGenerator
	opts      ChatOptions
	metrics   *Metrics
}

func NewChatService(moderator Moderator, retriever Retriever, builder *prompt.Builder, generator ai.IGenerator, opts ChatOptions, metrics *Metrics) *ChatService {
	return &ChatService{
		moderator: moderator,
		retriever: retriever,
		builder:   builder,
		generator: generator,
		opts:      opts,
		metrics:   metrics,
	}
}

// Chat runs one turn: moderation, retrieval, prompt assembly and generation.
// The query is the most recent user message.
func (s *ChatService) Chat(ctx context.Context, messages []model.ChatMessage) (*ChatReply, error) {
	start := time.Now()
	query, ok := model.LastUserContent(messages)
	query = strings.TrimSpace(query)
	if !ok || query == "" {
		s.finish(ctx, OutcomeInvalid, start, nil)
		return nil, fmt.Errorf("%w: no user message", appErr.ErrInvalid)
	}
	decision, err := s.moderator.Check(ctx, query)
	if err != nil {
		s.finish(ctx, OutcomeModerationError, start, err)
		return nil, &ModerationError{Err: err}
	}
	if !decision.Allowed {
		s.finish(ctx, OutcomeDenied, start, nil, zap.String("verdict", string(decision.Verdict)))
		return &ChatReply{Outcome: OutcomeDenied, Stream: ai.NewStaticStream(decision.Response)}, nil
	}
	gctx, err := s.retriever.Retrieve(ctx, query, s.opts.TopK, s.opts.Threshold)
	if err != nil {
		outcome := OutcomeTransportError
		if errors.Is(err, appErr.ErrInvalid) {
			outcome = OutcomeInvalid
		}
		s.finish(ctx, outcome, start, err)
		return nil, err
	}
	built := s.builder.Build(query, gctx)
	if built.ShortCircuit {
		s.finish(ctx, OutcomeUngrounded, start, nil)
		return &ChatReply{Outcome: OutcomeUngrounded, Stream: ai.NewStaticStream(built.Text)}, nil
	}
	genCtx, cancel := s.generationContext(ctx)
	stream, err := s.generator.Generate(genCtx, built.Prompt, s.opts.Decoding)
	if err != nil {
		cancel()
		s.finish(ctx, OutcomeGenerationError, start, err)
		return nil, &GenerationError{Err: err}
	}
	tracked := &trackedStream{
		inner:  ai.DefaultIfBlank(prompt.GuardCitations(stream, gctx), prompt.IDontKnow),
		cancel: cancel,
		done: func(outcome string, err error) {
			s.finish(ctx, outcome, start, err, zap.Int("sources", len(gctx.Sources)))
		},
	}
	return &ChatReply{Outcome: OutcomeOK, Stream: tracked, Sources: sourcesOf(gctx)}, nil
}

func (s *ChatService) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// Search exposes retrieval alone for debugging the catalog.
func (s *ChatService) Search(ctx context.Context, query string) (*retrieval.GroundedContext, error) {
	return s.retriever.Retrieve(ctx, query, s.opts.TopK, s.opts.Threshold)
}

func (s *ChatService) finish(ctx context.Context, outcome string, start time.Time, err error, fields ...zap.Field) {
	elapsed := time.Since(start)
	s.metrics.RecordOutcome(outcome, elapsed.Seconds())
	fields = append(fields, zap.String("outcome", outcome), zap.Duration("cost", elapsed))
	logger := logutil.GetLogger(ctx)
	if err != nil {
		logger.Error("chat request failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("chat request finished", fields...)
}

func sourcesOf(gctx *retrieval.GroundedContext) []ChatSource {
	out := make([]ChatSource, 0, len(gctx.Sources))
	for _, src := range gctx.Sources {
		out = append(out, ChatSource{Source: src.Entry.SourceID(), Score: src.Score})
	}
	return out
}

// trackedStream reports the final outcome of a generation once: on EOF, on
// error, or on Close when the consumer stops early.
type trackedStream struct {
	inner  ai.TextStream
	cancel context.CancelFunc
	done   func(outcome string, err error)
	once   sync.Once
}

func (t *trackedStream) Next() (string, error) {
	chunk, err := t.inner.Next()
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		t.report(OutcomeOK, nil)
	case errors.Is(err, context.Canceled):
		t.report(OutcomeCancelled, nil)
		err = &GenerationError{Err: err}
	default:
		t.report(OutcomeInterrupted, err)
		err = &GenerationError{Err: err}
	}
	return chunk, err
}

func (t *trackedStream) report(outcome string, err error) {
	t.once.Do(func() {
		t.done(outcome, err)
	})
}

func (t *trackedStream) Close() error {
	t.report(OutcomeCancelled, nil)
	err := t.inner.Close()
	t.cancel()
	return err
}
