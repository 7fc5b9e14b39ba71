package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/model"
	"github.com/xxxsen/bingio/internal/retrieval"
)

const (
	IDontKnow            = model.IDontKnowText
	DefaultSnippetLength = 800
	DefaultFollowup      = "Answer concisely. 2-3 sentences max."
)

const systemInstruction = `You are BINGIO. Answer the user's question using ONLY the information from the provided SOURCES.
Do NOT invent facts, do NOT use outside knowledge beyond the sources.
If the answer is not contained in the sources, reply exactly: "` + IDontKnow + `"`

var newlines = regexp.MustCompile(`\n+`)

type Result struct {
	// ShortCircuit means Text is the final answer and no model call is needed.
	ShortCircuit bool
	Text         string
	Prompt       ai.Prompt
}

type Builder struct {
	snippetLength int
	followup      string
}

type Option func(*Builder)

func WithSnippetLength(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.snippetLength = n
		}
	}
}

// WithFollowup sets the extra user instruction. An empty value disables it.
func WithFollowup(text string) Option {
	return func(b *Builder) {
		b.followup = strings.TrimSpace(text)
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{snippetLength: DefaultSnippetLength, followup: DefaultFollowup}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Build(query string, gctx *retrieval.GroundedContext) Result {
	if gctx.Empty() {
		return Result{ShortCircuit: true, Text: IDontKnow}
	}
	blocks := make([]string, 0, len(gctx.Sources))
	for _, src := range gctx.Sources {
		id := src.Entry.SourceID()
		if id == "" {
			id = fmt.Sprintf("doc-%d", src.Index)
		}
		blocks = append(blocks, fmt.Sprintf("SOURCE %d: [id=%s]\n%s\n", src.Index, id, b.snippet(src.Entry.Snippet())))
	}
	system := systemInstruction + "\n\n" + strings.Join(blocks, "\n---\n")
	user := fmt.Sprintf("User question: %s\n\nUse the sources below to answer. Cite sources inline like [SOURCE 1] when referring to them.", strings.TrimSpace(query))
	return Result{
		Prompt: ai.Prompt{
			System:   system,
			User:     user,
			Followup: b.followup,
		},
	}
}

func (b *Builder) snippet(text string) string {
	runes := []rune(text)
	if len(runes) > b.snippetLength {
		runes = runes[:b.snippetLength]
	}
	return newlines.ReplaceAllString(string(runes), " ")
}
