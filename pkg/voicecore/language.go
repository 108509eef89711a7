package voicecore

import "github.com/pemistahl/lingua-go"

// LinguaLanguageDetector implements LanguageDetector over
// pemistahl/lingua-go, restricted to a configured set of candidate
// languages (the recommended usage for short, noisy inputs like a single
// segment of transcribed speech — a broad "all languages" detector is both
// slower and more error-prone on short strings).
type LinguaLanguageDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaLanguageDetector builds a detector restricted to langTags (ISO
// 639-1 codes, e.g. "en", "fr"). Unrecognised tags are skipped. If no tag
// resolves to a known lingua.Language, Detect always reports !ok.
func NewLinguaLanguageDetector(langTags ...string) *LinguaLanguageDetector {
	languages := make([]lingua.Language, 0, len(langTags))
	for _, tag := range langTags {
		if lang, ok := languageForTag(tag); ok {
			languages = append(languages, lang)
		}
	}
	if len(languages) == 0 {
		return &LinguaLanguageDetector{}
	}
	builder := lingua.NewLanguageDetectorBuilder().FromLanguages(languages...)
	return &LinguaLanguageDetector{detector: builder.Build()}
}

// Detect returns the best-guess ISO 639-1 tag for text, or !ok if the
// detector has no configured languages or could not settle on one.
func (d *LinguaLanguageDetector) Detect(text string) (string, bool) {
	if d == nil || d.detector == nil || text == "" {
		return "", false
	}
	lang, exists := d.detector.DetectLanguageOf(text)
	if !exists {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

func languageForTag(tag string) (lingua.Language, bool) {
	for _, lang := range lingua.AllLanguages() {
		if lang.IsoCode639_1().String() == tag {
			return lang, true
		}
	}
	return 0, false
}
