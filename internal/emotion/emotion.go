package emotion

import "strings"

// Emotion is one of the fixed delivery styles the AAC board can request.
type Emotion string

const (
	Happy     Emotion = "happy"
	Sad       Emotion = "sad"
	Neutral   Emotion = "neutral"
	Surprised Emotion = "surprised"
	Angry     Emotion = "angry"
)

// speeds maps each emotion to the prosody speed sent to the provider.
var speeds = map[Emotion]float64{
	Happy:     1.10,
	Sad:       0.90,
	Neutral:   1.00,
	Surprised: 1.15,
	Angry:     1.05,
}

// Parse case-folds s and reports whether it names a known emotion.
// Unknown or empty values return (Neutral, false).
func Parse(s string) (Emotion, bool) {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := speeds[e]; ok {
		return e, true
	}
	return Neutral, false
}

// Speed returns the synthesis speed for e. Unknown emotions get the
// neutral speed so the policy stays total.
func (e Emotion) Speed() float64 {
	if s, ok := speeds[e]; ok {
		return s
	}
	return speeds[Neutral]
}

// Tag returns the parenthesized prefix used to steer the provider's
// delivery, e.g. "(happy)". Neutral has no tag.
func (e Emotion) Tag() string {
	if e == Neutral {
		return ""
	}
	return "(" + string(e) + ")"
}

// StripTag removes a leading "(emotion)" tag from text if it matches e,
// case-insensitively. Guards against callers that embed the tag inline
// as well as in the emotion field.
func StripTag(text string, e Emotion) string {
	tag := "(" + string(e) + ")"
	if len(text) >= len(tag) && strings.EqualFold(text[:len(tag)], tag) {
		return strings.TrimSpace(text[len(tag):])
	}
	return text
}

// PromptText builds the provider prompt: bare text for neutral,
// "(emotion) text" otherwise. Tagging is idempotent: a matching inline
// tag is stripped before the tag is applied.
func PromptText(text string, e Emotion) string {
	text = StripTag(text, e)
	if e == Neutral {
		return text
	}
	return e.Tag() + " " + text
}
