package classify

import (
	"context"
	"log/slog"
)

// English fallback texts for canned intents. The model is asked to
// localize its own canned text; these cover the cases where it does
// not, translated on the way out when the expected language differs.
var cannedTemplates = map[Classification]string{
	ClassGreeting: "Hello! I'm a climate information assistant. Ask me anything about " +
		"climate change, extreme weather, or how to prepare your home and community.",
	ClassGoodbye: "Goodbye! Come back any time you have questions about climate " +
		"change or preparing for extreme weather.",
	ClassThanks: "You're welcome! I'm happy to help with any other climate questions.",
	ClassEmergency: "If you are in immediate danger, please contact your local " +
		"emergency services right away (911 in North America). I can share " +
		"preparedness information, but I cannot provide emergency assistance.",
	ClassInstruction: "I answer questions about climate change using a library of " +
		"vetted sources. Ask a question in any supported language, pick that " +
		"language from the selector, and I'll reply with an answer and the " +
		"sources it came from.",
}

// ensureCanned guarantees a canned intent carries usable reply text:
// the model's localized text when present, otherwise the built-in
// template translated to the expected language. Translation failures
// fall back to English; a canned reply must never fail the request.
func (c *Classifier) ensureCanned(ctx context.Context, result *Result) {
	if !result.Classification.IsCanned() {
		return
	}

	result.Canned.Enabled = true
	if result.Canned.Type == "" {
		result.Canned.Type = string(result.Classification)
	}

	if result.Classification == ClassInstruction {
		result.AskHowToUse = true
		if result.HowItWorks == "" {
			result.HowItWorks = cannedTemplates[ClassInstruction]
		}
		if result.Canned.Text == "" {
			result.Canned.Text = result.HowItWorks
		}
	}

	if result.Canned.Text != "" {
		return
	}

	text := cannedTemplates[result.Classification]
	if result.ExpectedLanguage != "" && result.ExpectedLanguage != "en" && c.translator != nil {
		translated, err := c.translator.Translate(ctx, text, result.ExpectedLanguage)
		if err != nil {
			slog.Warn("Canned text translation failed, using English",
				"type", result.Canned.Type,
				"language", result.ExpectedLanguage,
				"error", err)
		} else if translated != "" {
			text = translated
		}
	}
	result.Canned.Text = text
}
