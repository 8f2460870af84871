package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// parseResponse turns raw model output into a normalized Result. Three
// attempts, loosest last: strict JSON (with code fences and surrounding
// prose stripped), the older labeled-line format, then a best-effort
// regex extraction. Every path validates the classification enum.
func parseResponse(raw, expectedLanguage string) (*Result, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("empty classifier response")
	}

	if result, err := parseJSON(text, expectedLanguage); err == nil {
		return result, nil
	}

	if result, err := parseLabeledLines(text, expectedLanguage); err == nil {
		return result, nil
	}

	return parseExtracted(text, expectedLanguage)
}

// parseJSON handles well-formed output: a JSON object, possibly inside
// markdown fences or surrounded by prose.
func parseJSON(text, expectedLanguage string) (*Result, error) {
	candidate := extractJSONObject(text)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON object found")
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
		return nil, fmt.Errorf("failed to decode classifier JSON: %w", err)
	}
	if wire.Classification == "" {
		return nil, fmt.Errorf("classifier JSON missing classification")
	}
	return wire.normalize(expectedLanguage)
}

// extractJSONObject returns the first balanced {...} span in text,
// ignoring braces inside string literals.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

// parseLabeledLines handles the older "Key: value" line format.
func parseLabeledLines(text, expectedLanguage string) (*Result, error) {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		key = strings.ReplaceAll(key, " ", "_")
		key = strings.Trim(key, `*"`)
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `"'`)
		if value != "" {
			fields[key] = value
		}
	}

	classification, ok := fields["classification"]
	if !ok {
		return nil, fmt.Errorf("labeled lines missing classification")
	}
	wire := wireResult{
		Reason:         fields["reason"],
		Classification: classification,
		LanguageMatch:  boolish(parseLooseBool(fields["language_match"])),
		AskHowToUse:    boolish(parseLooseBool(fields["ask_how_to_use"])),
	}
	if lang, ok := fields["language"]; ok {
		wire.Language = &lang
	} else if lang, ok := fields["detected_language"]; ok {
		wire.Language = &lang
	}
	if rewrite, ok := fields["rewrite_en"]; ok && !isNullWord(rewrite) {
		wire.RewriteEN = &rewrite
	}
	if blurb, ok := fields["how_it_works"]; ok && !isNullWord(blurb) {
		wire.HowItWorks = &blurb
	}
	if cannedText, ok := fields["canned_text"]; ok && !isNullWord(cannedText) {
		wire.Canned = &wireCanned{
			Enabled: boolish(parseLooseBool(fields["canned_enabled"])),
			Type:    fields["canned_type"],
			Text:    &cannedText,
		}
	} else if parseLooseBool(fields["canned_enabled"]) {
		wire.Canned = &wireCanned{Enabled: true, Type: fields["canned_type"]}
	}

	return wire.normalize(expectedLanguage)
}

var (
	classificationPattern = regexp.MustCompile(`(?i)["']?classification["']?\s*[:=]\s*["']?(on-topic|off-topic|harmful|greeting|goodbye|thanks|emergency|instruction)["']?`)
	languageMatchPattern  = regexp.MustCompile(`(?i)["']?language_match["']?\s*[:=]\s*["']?(true|false|yes|no)["']?`)
	rewritePattern        = regexp.MustCompile(`(?i)["']?rewrite_en["']?\s*[:=]\s*"([^"]*)"`)
	languagePattern       = regexp.MustCompile(`(?i)["']?\blanguage["']?\s*[:=]\s*["']?([a-z]{2})["']?`)
)

// parseExtracted scrapes the few load-bearing fields out of otherwise
// unusable output. Anything it cannot find stays at the zero value.
func parseExtracted(text, expectedLanguage string) (*Result, error) {
	m := classificationPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("could not extract a classification from response")
	}

	wire := wireResult{Classification: strings.ToLower(m[1])}
	if lm := languageMatchPattern.FindStringSubmatch(text); lm != nil {
		wire.LanguageMatch = boolish(parseLooseBool(lm[1]))
	}
	if rw := rewritePattern.FindStringSubmatch(text); rw != nil && rw[1] != "" {
		rewrite := rw[1]
		wire.RewriteEN = &rewrite
	}
	if lg := languagePattern.FindStringSubmatch(text); lg != nil {
		lang := strings.ToLower(lg[1])
		wire.Language = &lang
	}

	return wire.normalize(expectedLanguage)
}

func isNullWord(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null", "none", "nil", "n/a":
		return true
	}
	return false
}
