package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type ClassifierFactory func(args interface{}) (Classifier, error)

var registry = map[string]ClassifierFactory{}

func Register(name string, factory ClassifierFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewClassifier(name string, args interface{}) (Classifier, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "keyword"
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported moderation classifier: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode moderation config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode moderation config: %w", err)
	}
	return nil
}

type noneClassifier struct{}

func (noneClassifier) Name() string {
	return "none"
}

func (noneClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	return &Classification{}, nil
}

func init() {
	Register("none", func(args interface{}) (Classifier, error) {
		return noneClassifier{}, nil
	})
}
