package moderation

import "strings"

// HelpResources is appended to every self-harm response.
const HelpResources = "If you are in immediate danger, please call your local emergency number. " +
	"You can also reach a crisis line such as 988 (US), 116 123 (Samaritans, UK/IE) or find one at https://findahelpline.com. " +
	"Talking to a friend or family member you trust can help too."

var defaultResponses = map[Verdict]string{
	VerdictSelfHarm: "I'm really sorry you're feeling this way. You deserve support from real people right now, " +
		"not just a movie suggestion.",
	VerdictSexualMinors:          "I can't help with that.",
	VerdictIllicitViolent:        "I can't help with anything that involves violence or breaking the law, including piracy.",
	VerdictHateThreatening:       "I can't help with threats or hateful content.",
	VerdictHarassmentThreatening: "I can't help with threatening or harassing someone.",
	VerdictViolenceGraphic:       "I'd rather not go into graphic violence. Want a recommendation for something else?",
	VerdictDefault:               "Sorry, I can't help with that. Tell me how you feel and I'll find something to watch.",
}

func responseFor(v Verdict, overrides map[Verdict]string) string {
	text := strings.TrimSpace(overrides[v])
	if text == "" {
		text = defaultResponses[v]
	}
	if text == "" {
		text = defaultResponses[VerdictDefault]
	}
	if v == VerdictSelfHarm && !strings.Contains(text, HelpResources) {
		text = text + "\n\n" + HelpResources
	}
	return text
}
