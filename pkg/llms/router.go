package llms

import (
	"os"
	"strings"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/languages"
)

// ForceBackendAEnv forces every language onto the Command-A backend
// when set to anything but "", "0" or "false". It takes precedence
// over the models.force_command_a config knob.
const ForceBackendAEnv = "FORCE_BACKEND_A"

// Route is the outcome of backend selection for one request.
type Route struct {
	Backend  Backend
	Provider Provider

	// EnglishQuery is the canonical English retrieval query:
	// the classifier's rewrite when present, the raw query otherwise.
	EnglishQuery string

	// Forced reports that the global override picked the backend
	// instead of the language table.
	Forced bool
}

// Router maps the expected language of a request to a generation
// backend. Command-A serves its officially supported languages; Nova
// serves the rest.
type Router struct {
	commandA Provider
	nova     Provider
	force    bool
}

func NewRouter(providers *Providers, forceCommandA bool) *Router {
	return &Router{
		commandA: providers.CommandA,
		nova:     providers.Nova,
		force:    forceCommandA || forceFromEnv(),
	}
}

// Select picks the backend for languageCode and resolves the English
// retrieval query from the optional rewrite.
func (r *Router) Select(languageCode, rawQuery, rewriteEN string) Route {
	english := strings.TrimSpace(rewriteEN)
	if english == "" {
		english = rawQuery
	}

	route := Route{
		Backend:      BackendNova,
		Provider:     r.nova,
		EnglishQuery: english,
	}

	if r.force {
		route.Backend = BackendCommandA
		route.Provider = r.commandA
		route.Forced = true
		return route
	}

	if languages.IsCommandALanguage(languageCode) {
		route.Backend = BackendCommandA
		route.Provider = r.commandA
	}

	return route
}

func forceFromEnv() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(ForceBackendAEnv)))
	return v != "" && v != "0" && v != "false"
}
