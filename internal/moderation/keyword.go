package moderation

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

var defaultKeywordPatterns = map[string][]string{
	"self-harm/intent": {
		`\b(kill|hurt|harm|cut)\s+myself\b`,
		`\bend\s+my\s+life\b`,
		`\bwant\s+to\s+die\b`,
		`\bcommit\s+suicide\b`,
		`\b(i'?m|i\s+am|feeling|feel)\s+suicidal\b`,
		`\bself[-\s]harm(ing)?\b`,
	},
	"illicit": {
		`\btorrents?\b`,
		`\bpira(cy|ted)\b`,
		`\billegal(ly)?\s+stream`,
	},
	"harassment/threatening": {
		`\b(i('| wi)ll|gonna|going\s+to)\s+(kill|hurt|beat\s+up)\s+(him|her|them|you)\b`,
	},
}

type keywordConfig struct {
	Patterns map[string][]string `json:"patterns"`
}

type keywordRule struct {
	category string
	re       *regexp.Regexp
}

type keywordClassifier struct {
	rules []keywordRule
}

// NewKeywordClassifier compiles case-insensitive patterns grouped by category.
func NewKeywordClassifier(patterns map[string][]string) (Classifier, error) {
	categories := make([]string, 0, len(patterns))
	for c := range patterns {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	k := &keywordClassifier{}
	for _, c := range categories {
		for _, p := range patterns[c] {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("compile pattern for %s: %w", c, err)
			}
			k.rules = append(k.rules, keywordRule{category: c, re: re})
		}
	}
	return k, nil
}

func (k *keywordClassifier) Name() string {
	return "keyword"
}

func (k *keywordClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	res := &Classification{}
	seen := make(map[string]struct{})
	for _, r := range k.rules {
		if _, ok := seen[r.category]; ok {
			continue
		}
		if r.re.MatchString(text) {
			seen[r.category] = struct{}{}
			res.Categories = append(res.Categories, r.category)
		}
	}
	res.Flagged = len(res.Categories) > 0
	return res, nil
}

func init() {
	Register("keyword", func(args interface{}) (Classifier, error) {
		cfg := &keywordConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		patterns := defaultKeywordPatterns
		if len(cfg.Patterns) > 0 {
			patterns = cfg.Patterns
		}
		return NewKeywordClassifier(patterns)
	})
}
