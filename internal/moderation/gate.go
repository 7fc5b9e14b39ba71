package moderation

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Classifier is an external decision service.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) (*Classification, error)
}

type Decision struct {
	Allowed    bool
	Verdict    Verdict
	Response   string
	Categories []string
}

type Gate struct {
	classifier Classifier
	responses  map[Verdict]string
}

type GateOption func(*Gate)

// WithResponses overrides the fixed response of some verdicts.
func WithResponses(responses map[string]string) GateOption {
	return func(g *Gate) {
		for k, v := range responses {
			g.responses[Verdict(k)] = v
		}
	}
}

func NewGate(c Classifier, opts ...GateOption) *Gate {
	g := &Gate{classifier: c, responses: make(map[Verdict]string)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check classifies text. A classifier failure is returned as an error and
// never treated as allow.
func (g *Gate) Check(ctx context.Context, text string) (Decision, error) {
	cls, err := g.classifier.Classify(ctx, text)
	if err != nil {
		return Decision{}, fmt.Errorf("moderation classifier %s: %w", g.classifier.Name(), err)
	}
	verdict := Resolve(cls)
	if verdict == VerdictAllow {
		return Decision{Allowed: true, Verdict: VerdictAllow}, nil
	}
	logutil.GetLogger(ctx).Info("message denied by moderation",
		zap.String("verdict", string(verdict)),
		zap.Strings("categories", cls.Categories),
	)
	return Decision{
		Allowed:    false,
		Verdict:    verdict,
		Response:   responseFor(verdict, g.responses),
		Categories: cls.Categories,
	}, nil
}
