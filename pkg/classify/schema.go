package classify

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// responseSchema is the contract reflected into the JSON schema shown
// to the model. It mirrors wireResult with plain types so the schema
// stays readable.
type responseSchema struct {
	Reason           string        `json:"reason" jsonschema:"required,description=One short sentence explaining the decision"`
	Language         *string       `json:"language" jsonschema:"description=ISO 639-1 code of the query's language; null when unknown"`
	ExpectedLanguage string        `json:"expected_language" jsonschema:"required,description=The language code the user selected"`
	LanguageMatch    bool          `json:"language_match" jsonschema:"required,description=Whether the query language matches the selected language"`
	Classification   string        `json:"classification" jsonschema:"required,enum=on-topic,enum=off-topic,enum=harmful,enum=greeting,enum=goodbye,enum=thanks,enum=emergency,enum=instruction"`
	RewriteEN        *string       `json:"rewrite_en" jsonschema:"description=Self-contained English rewrite of the query; null for non-retrieval intents"`
	AskHowToUse      bool          `json:"ask_how_to_use" jsonschema:"description=True when the user asks how to use this service"`
	HowItWorks       *string       `json:"how_it_works" jsonschema:"description=Short service description for instruction queries; otherwise null"`
	Canned           cannedSchema  `json:"canned" jsonschema:"required"`
	Error            *errorDetails `json:"error" jsonschema:"description=Null unless the message could not be analyzed"`
}

type cannedSchema struct {
	Enabled bool    `json:"enabled" jsonschema:"required,description=True for greeting/goodbye/thanks/emergency/instruction"`
	Type    string  `json:"type" jsonschema:"description=The canned intent name; empty when enabled is false"`
	Text    *string `json:"text" jsonschema:"description=A short reply in the user's selected language; null when enabled is false"`
}

type errorDetails struct {
	Message string `json:"message" jsonschema:"required"`
}

// responseSchemaJSON renders the schema once; it is embedded into every
// classifier prompt.
func responseSchemaJSON() (string, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(&responseSchema{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render classifier schema: %w", err)
	}
	return string(data), nil
}
