package moderation

import "strings"

type Verdict string

const (
	VerdictAllow                 Verdict = "allow"
	VerdictSexualMinors          Verdict = "sexual/minors"
	VerdictHarassmentThreatening Verdict = "harassment/threatening"
	VerdictHateThreatening       Verdict = "hate/threatening"
	VerdictIllicitViolent        Verdict = "illicit/violent"
	VerdictSelfHarm              Verdict = "self-harm"
	VerdictViolenceGraphic       Verdict = "violence/graphic"
	VerdictDefault               Verdict = "default"
)

// severity lists denial verdicts from most to least severe.
var severity = []Verdict{
	VerdictSelfHarm,
	VerdictSexualMinors,
	VerdictIllicitViolent,
	VerdictHateThreatening,
	VerdictHarassmentThreatening,
	VerdictViolenceGraphic,
	VerdictDefault,
}

func rank(v Verdict) int {
	for i, s := range severity {
		if s == v {
			return i
		}
	}
	return len(severity)
}

// Classification is the raw output of a classifier.
type Classification struct {
	Flagged    bool
	Categories []string
}

// categoryVerdict maps a classifier category onto the closed verdict set.
func categoryVerdict(category string) Verdict {
	c := strings.ToLower(strings.TrimSpace(category))
	switch {
	case c == "self-harm" || strings.HasPrefix(c, "self-harm/"):
		return VerdictSelfHarm
	case c == string(VerdictSexualMinors):
		return VerdictSexualMinors
	case c == string(VerdictIllicitViolent):
		return VerdictIllicitViolent
	case c == string(VerdictHateThreatening):
		return VerdictHateThreatening
	case c == string(VerdictHarassmentThreatening):
		return VerdictHarassmentThreatening
	case c == string(VerdictViolenceGraphic):
		return VerdictViolenceGraphic
	}
	return VerdictDefault
}

// Resolve picks the most severe verdict among the flagged categories.
func Resolve(c *Classification) Verdict {
	if c == nil || (!c.Flagged && len(c.Categories) == 0) {
		return VerdictAllow
	}
	best := VerdictDefault
	for _, category := range c.Categories {
		v := categoryVerdict(category)
		if rank(v) < rank(best) {
			best = v
		}
	}
	return best
}
