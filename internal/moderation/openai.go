package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/bingio/internal/ai"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultModerationModel   = "omni-moderation-latest"
	defaultModerationTimeout = 10 * time.Second
)

type openAIConfig struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	TimeoutMs int64  `json:"timeout_ms"`
}

type openAIClassifier struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type moderationRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

func (o *openAIClassifier) Name() string {
	return "openai"
}

func (o *openAIClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	if o.apiKey == "" {
		return nil, ai.ErrUnavailable
	}
	data, err := json.Marshal(moderationRequest{Model: o.model, Input: text})
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(o.baseURL, "/") + "/moderations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openai moderation failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out moderationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, fmt.Errorf("openai moderation returned no results")
	}
	res := &Classification{}
	for _, r := range out.Results {
		res.Flagged = res.Flagged || r.Flagged
		for c, on := range r.Categories {
			if on {
				res.Categories = append(res.Categories, c)
			}
		}
	}
	sort.Strings(res.Categories)
	return res, nil
}

func init() {
	Register("openai", func(args interface{}) (Classifier, error) {
		cfg := &openAIConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		baseURL := strings.TrimSpace(cfg.BaseURL)
		if baseURL == "" {
			baseURL = defaultOpenAIBaseURL
		}
		model := strings.TrimSpace(cfg.Model)
		if model == "" {
			model = defaultModerationModel
		}
		timeout := defaultModerationTimeout
		if cfg.TimeoutMs > 0 {
			timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
		}
		return &openAIClassifier{
			apiKey:  strings.TrimSpace(cfg.APIKey),
			baseURL: baseURL,
			model:   model,
			client:  &http.Client{Timeout: timeout},
		}, nil
	})
}
