// Package languages holds the supported-language tables: which
// languages the service accepts, which of them the Cohere Command-A
// backend covers natively, and the multilingual climate keyword guard
// consulted before rejecting a non-English query as off-topic.
package languages

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Language describes one supported query language.
type Language struct {
	// Code is the lowercase ISO 639-1 code ("en", "zh").
	Code string `json:"code"`

	// Name is the English name.
	Name string `json:"name"`

	// NativeName is the language's own name for itself.
	NativeName string `json:"native_name"`
}

// commandALanguages are the languages Cohere Command-A supports
// natively. Everything else routes to the Nova backend.
var commandALanguages = map[string]bool{
	"en": true,
	"es": true,
	"de": true,
	"it": true,
	"pt": true,
}

var table = []Language{
	{"am", "Amharic", "አማርኛ"},
	{"ar", "Arabic", "العربية"},
	{"bg", "Bulgarian", "Български"},
	{"bn", "Bengali", "বাংলা"},
	{"cs", "Czech", "Čeština"},
	{"da", "Danish", "Dansk"},
	{"de", "German", "Deutsch"},
	{"el", "Greek", "Ελληνικά"},
	{"en", "English", "English"},
	{"es", "Spanish", "Español"},
	{"et", "Estonian", "Eesti"},
	{"fa", "Persian", "فارسی"},
	{"fi", "Finnish", "Suomi"},
	{"fr", "French", "Français"},
	{"gu", "Gujarati", "ગુજરાતી"},
	{"ha", "Hausa", "Hausa"},
	{"he", "Hebrew", "עברית"},
	{"hi", "Hindi", "हिन्दी"},
	{"hr", "Croatian", "Hrvatski"},
	{"ht", "Haitian Creole", "Kreyòl Ayisyen"},
	{"hu", "Hungarian", "Magyar"},
	{"id", "Indonesian", "Bahasa Indonesia"},
	{"it", "Italian", "Italiano"},
	{"ja", "Japanese", "日本語"},
	{"km", "Khmer", "ខ្មែរ"},
	{"ko", "Korean", "한국어"},
	{"lo", "Lao", "ລາວ"},
	{"lt", "Lithuanian", "Lietuvių"},
	{"lv", "Latvian", "Latviešu"},
	{"mr", "Marathi", "मराठी"},
	{"ms", "Malay", "Bahasa Melayu"},
	{"my", "Burmese", "မြန်မာ"},
	{"ne", "Nepali", "नेपाली"},
	{"nl", "Dutch", "Nederlands"},
	{"no", "Norwegian", "Norsk"},
	{"pa", "Punjabi", "ਪੰਜਾਬੀ"},
	{"pl", "Polish", "Polski"},
	{"pt", "Portuguese", "Português"},
	{"ro", "Romanian", "Română"},
	{"ru", "Russian", "Русский"},
	{"si", "Sinhala", "සිංහල"},
	{"sk", "Slovak", "Slovenčina"},
	{"sl", "Slovenian", "Slovenščina"},
	{"so", "Somali", "Soomaali"},
	{"sq", "Albanian", "Shqip"},
	{"sr", "Serbian", "Српски"},
	{"sv", "Swedish", "Svenska"},
	{"sw", "Swahili", "Kiswahili"},
	{"ta", "Tamil", "தமிழ்"},
	{"te", "Telugu", "తెలుగు"},
	{"th", "Thai", "ไทย"},
	{"tl", "Tagalog", "Tagalog"},
	{"tr", "Turkish", "Türkçe"},
	{"uk", "Ukrainian", "Українська"},
	{"ur", "Urdu", "اردو"},
	{"vi", "Vietnamese", "Tiếng Việt"},
	{"zh", "Chinese", "中文"},
}

var (
	byCode map[string]Language
	byName map[string]string // lowercase English or native name -> code
)

func init() {
	byCode = make(map[string]Language, len(table))
	byName = make(map[string]string, len(table)*2)
	for _, l := range table {
		byCode[l.Code] = l
		byName[strings.ToLower(l.Name)] = l.Code
		byName[strings.ToLower(l.NativeName)] = l.Code
	}
}

// Normalize resolves user input ("en", "en-US", "English", "español")
// to a supported language code. The second return is false when the
// language is not supported.
func Normalize(input string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", false
	}

	if _, ok := byCode[s]; ok {
		return s, true
	}

	if code, ok := byName[s]; ok {
		return code, true
	}

	// BCP-47 variants: "en-US", "pt_BR", "zh-Hant"
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err == nil {
		base, conf := tag.Base()
		if conf != language.No {
			if _, ok := byCode[base.String()]; ok {
				return base.String(), true
			}
		}
	}

	return "", false
}

// IsSupported reports whether the code names a supported language.
func IsSupported(code string) bool {
	_, ok := byCode[code]
	return ok
}

// IsCommandALanguage reports whether the Cohere Command-A backend
// covers the language natively.
func IsCommandALanguage(code string) bool {
	return commandALanguages[code]
}

// Get returns the Language for a code.
func Get(code string) (Language, bool) {
	l, ok := byCode[code]
	return l, ok
}

// Supported returns all supported languages sorted by English name.
func Supported() []Language {
	out := make([]Language, len(table))
	copy(out, table)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
