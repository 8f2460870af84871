// Package classify implements the combined query classifier and
// rewriter: one LLM call that detects the query language, assigns an
// intent from a closed set, checks the detected language against the
// user's selection, and rewrites the query into self-contained English
// for retrieval. Canned intents (greeting, goodbye, thanks, emergency,
// instruction) also carry a localized reply so the pipeline can answer
// without touching the index or a generator.
package classify

import (
	"fmt"
	"strings"
)

// Classification is the closed set of query intents.
type Classification string

const (
	ClassOnTopic     Classification = "on-topic"
	ClassOffTopic    Classification = "off-topic"
	ClassHarmful     Classification = "harmful"
	ClassGreeting    Classification = "greeting"
	ClassGoodbye     Classification = "goodbye"
	ClassThanks      Classification = "thanks"
	ClassEmergency   Classification = "emergency"
	ClassInstruction Classification = "instruction"
)

var validClassifications = map[Classification]bool{
	ClassOnTopic:     true,
	ClassOffTopic:    true,
	ClassHarmful:     true,
	ClassGreeting:    true,
	ClassGoodbye:     true,
	ClassThanks:      true,
	ClassEmergency:   true,
	ClassInstruction: true,
}

// IsCanned reports whether the intent is answered with a deterministic
// reply instead of retrieval and generation.
func (c Classification) IsCanned() bool {
	switch c {
	case ClassGreeting, ClassGoodbye, ClassThanks, ClassEmergency, ClassInstruction:
		return true
	}
	return false
}

// Canned is the deterministic reply attached to conversational intents.
type Canned struct {
	Enabled bool   `json:"enabled"`
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
}

// Result is the normalized classifier output every downstream branch
// decides on.
type Result struct {
	// Reason is the model's one-line justification, kept for logs.
	Reason string `json:"reason"`

	// DetectedLanguage is the ISO 639-1 code of the query's language,
	// or empty when the model could not tell.
	DetectedLanguage string `json:"detected_language,omitempty"`

	// ExpectedLanguage is the user-selected language code.
	ExpectedLanguage string `json:"expected_language"`

	// LanguageMatch reports whether the detected language agrees with
	// the selection. False short-circuits the pipeline.
	LanguageMatch bool `json:"language_match"`

	Classification Classification `json:"classification"`

	// RewriteEN is the self-contained English rewrite used as the
	// retrieval query. Empty for non-retrieval intents.
	RewriteEN string `json:"rewrite_en,omitempty"`

	// AskHowToUse reports that the user asked how to use the service.
	AskHowToUse bool `json:"ask_how_to_use,omitempty"`

	// HowItWorks is a brief service description for instruction
	// queries.
	HowItWorks string `json:"how_it_works,omitempty"`

	Canned Canned `json:"canned"`

	// GuardApplied reports that the multilingual climate keyword guard
	// overrode an off-topic verdict.
	GuardApplied bool `json:"-"`

	// Degraded reports that the model call failed or timed out and the
	// result is the keyword-heuristic default.
	Degraded bool `json:"-"`
}

// RequiresRetrieval reports whether the pipeline should continue into
// retrieval and generation.
func (r *Result) RequiresRetrieval() bool {
	return r.Classification == ClassOnTopic && r.LanguageMatch && !r.Canned.Enabled
}

// wireResult mirrors the JSON contract the model is asked to emit.
// Nullable fields are pointers so absent and null both normalize to
// the zero value.
type wireResult struct {
	Reason           string      `json:"reason"`
	Language         *string     `json:"language"`
	ExpectedLanguage string      `json:"expected_language"`
	LanguageMatch    boolish     `json:"language_match"`
	Classification   string      `json:"classification"`
	RewriteEN        *string     `json:"rewrite_en"`
	AskHowToUse      boolish     `json:"ask_how_to_use"`
	HowItWorks       *string     `json:"how_it_works"`
	Canned           *wireCanned `json:"canned"`
	Error            *wireError  `json:"error"`
}

type wireCanned struct {
	Enabled boolish `json:"enabled"`
	Type    string  `json:"type"`
	Text    *string `json:"text"`
}

type wireError struct {
	Message string `json:"message"`
}

// normalize validates the wire payload and converts it to a Result.
func (w *wireResult) normalize(expectedLanguage string) (*Result, error) {
	classification := Classification(strings.ToLower(strings.TrimSpace(w.Classification)))
	if !validClassifications[classification] {
		return nil, fmt.Errorf("classification %q is not in the closed set", w.Classification)
	}

	result := &Result{
		Reason:           strings.TrimSpace(w.Reason),
		ExpectedLanguage: expectedLanguage,
		LanguageMatch:    bool(w.LanguageMatch),
		Classification:   classification,
		AskHowToUse:      bool(w.AskHowToUse),
	}

	if w.Language != nil {
		lang := strings.ToLower(strings.TrimSpace(*w.Language))
		if lang != "unknown" && lang != "none" {
			result.DetectedLanguage = lang
		}
	}
	if w.RewriteEN != nil {
		result.RewriteEN = strings.TrimSpace(*w.RewriteEN)
	}
	if w.HowItWorks != nil {
		result.HowItWorks = strings.TrimSpace(*w.HowItWorks)
	}
	if w.Canned != nil {
		result.Canned = Canned{
			Enabled: bool(w.Canned.Enabled),
			Type:    strings.ToLower(strings.TrimSpace(w.Canned.Type)),
		}
		if w.Canned.Text != nil {
			result.Canned.Text = strings.TrimSpace(*w.Canned.Text)
		}
	}

	return result, nil
}

// boolish coerces the bool encodings models actually produce: true,
// "true", "True", "yes", 1.
type boolish bool

func (b *boolish) UnmarshalJSON(data []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`))
	switch s {
	case "true", "yes", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

func parseLooseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	}
	return false
}
