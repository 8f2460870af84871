package classify

import (
	"strings"
	"testing"
)

func TestParseResponse_StrictJSON(t *testing.T) {
	raw := `{
		"reason": "asks about climate impacts",
		"language": "es",
		"expected_language": "es",
		"language_match": true,
		"classification": "on-topic",
		"rewrite_en": "What are the impacts of climate change on coastal cities?",
		"ask_how_to_use": false,
		"how_it_works": null,
		"canned": {"enabled": false, "type": "", "text": null},
		"error": null
	}`

	result, err := parseResponse(raw, "es")
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if result.Classification != ClassOnTopic {
		t.Errorf("classification = %s, want on-topic", result.Classification)
	}
	if !result.LanguageMatch {
		t.Error("language_match = false, want true")
	}
	if result.DetectedLanguage != "es" {
		t.Errorf("detected language = %q, want es", result.DetectedLanguage)
	}
	if !strings.Contains(result.RewriteEN, "coastal cities") {
		t.Errorf("rewrite_en = %q, want coastal cities rewrite", result.RewriteEN)
	}
	if result.Canned.Enabled {
		t.Error("canned.enabled = true, want false")
	}
}

func TestParseResponse_FencedJSONWithProse(t *testing.T) {
	raw := "Here is my analysis:\n```json\n" +
		`{"reason": "greeting", "language": "en", "expected_language": "en",
		  "language_match": true, "classification": "greeting",
		  "rewrite_en": null, "ask_how_to_use": false, "how_it_works": null,
		  "canned": {"enabled": true, "type": "greeting", "text": "Hello!"},
		  "error": null}` +
		"\n```\nLet me know if you need anything else."

	result, err := parseResponse(raw, "en")
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if result.Classification != ClassGreeting {
		t.Errorf("classification = %s, want greeting", result.Classification)
	}
	if !result.Canned.Enabled || result.Canned.Text != "Hello!" {
		t.Errorf("canned = %+v, want enabled greeting with text", result.Canned)
	}
}

func TestParseResponse_BoolishCoercion(t *testing.T) {
	raw := `{"classification": "on-topic", "language_match": "Yes", "ask_how_to_use": "false"}`

	result, err := parseResponse(raw, "en")
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if !result.LanguageMatch {
		t.Error(`language_match "Yes" did not coerce to true`)
	}
	if result.AskHowToUse {
		t.Error(`ask_how_to_use "false" did not coerce to false`)
	}
}

func TestParseResponse_LabeledLines(t *testing.T) {
	raw := strings.Join([]string{
		"reason: user asks about flooding",
		"language: fr",
		"language_match: true",
		"classification: on-topic",
		`rewrite_en: "How can I protect my basement from flooding?"`,
	}, "\n")

	result, err := parseResponse(raw, "fr")
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if result.Classification != ClassOnTopic {
		t.Errorf("classification = %s, want on-topic", result.Classification)
	}
	if result.DetectedLanguage != "fr" {
		t.Errorf("detected language = %q, want fr", result.DetectedLanguage)
	}
	if !strings.Contains(result.RewriteEN, "basement") {
		t.Errorf("rewrite_en = %q, want basement rewrite", result.RewriteEN)
	}
	if !result.LanguageMatch {
		t.Error("language_match = false, want true")
	}
}

func TestParseResponse_RegexExtraction(t *testing.T) {
	// Broken JSON on one line: no balanced object, no labeled lines.
	raw := `Sure! "classification": "on-topic", "language_match": "true", "language": "de", "rewrite_en": "What is a heat pump?" and that is all`

	result, err := parseResponse(raw, "de")
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if result.Classification != ClassOnTopic {
		t.Errorf("classification = %s, want on-topic", result.Classification)
	}
	if result.RewriteEN != "What is a heat pump?" {
		t.Errorf("rewrite_en = %q", result.RewriteEN)
	}
	if result.DetectedLanguage != "de" {
		t.Errorf("detected language = %q, want de", result.DetectedLanguage)
	}
}

func TestParseResponse_RejectsUnknownClassification(t *testing.T) {
	raws := []string{
		`{"classification": "banana", "language_match": true}`,
		"classification: banana",
		"no recognizable fields at all",
		"",
	}
	for _, raw := range raws {
		if _, err := parseResponse(raw, "en"); err == nil {
			t.Errorf("parseResponse(%q) accepted invalid input", raw)
		}
	}
}

func TestExtractJSONObject_IgnoresBracesInStrings(t *testing.T) {
	raw := `prefix {"reason": "uses {braces} inside", "classification": "off-topic"} suffix`

	got := extractJSONObject(raw)
	want := `{"reason": "uses {braces} inside", "classification": "off-topic"}`
	if got != want {
		t.Errorf("extractJSONObject() = %q, want %q", got, want)
	}
}

func TestExtractJSONObject_Unbalanced(t *testing.T) {
	if got := extractJSONObject(`{"classification": "on-topic"`); got != "" {
		t.Errorf("extractJSONObject() = %q, want empty for unbalanced input", got)
	}
}
