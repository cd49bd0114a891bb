// Package locale resolves localized content for an element or label against
// a requested locale, falling back to a project's main locale when a
// translation is missing or the containing node opts out of translation.
package locale

import "github.com/storyflowrt/engine/internal/project"

// Content is a resolved piece of localized text. NotTranslated is computed
// per-request — it is never stored on the project tree itself — and is set
// when the requested locale's text was missing or empty and the main
// locale's text was used instead. A non-translatable node, which always
// reads the main locale, does not set it.
type Content struct {
	LocaleCode    string
	Text          string
	NotTranslated bool
}

// contentSource is satisfied by *project.NodeElement and *project.Label.
type contentSource interface {
	Content(localeCode string) (project.LocalizedContent, bool)
}

// Resolve returns the best Content for source given requested locale and
// the project's main locale. translatable is false for nodes marked
// non-translatable (e.g. Note nodes authored once and never localized) —
// such nodes always resolve against mainLocale regardless of what was
// requested.
func Resolve(source contentSource, requested, mainLocale string, translatable bool) (Content, bool) {
	lookupLocale := requested
	if !translatable && requested != mainLocale {
		lookupLocale = mainLocale
	}

	if c, ok := source.Content(lookupLocale); ok && c.Text != "" {
		return Content{LocaleCode: c.LocaleCode, Text: c.Text}, true
	}

	if lookupLocale == mainLocale {
		return Content{}, false
	}

	if c, ok := source.Content(mainLocale); ok {
		return Content{LocaleCode: c.LocaleCode, Text: c.Text, NotTranslated: true}, true
	}
	return Content{}, false
}

// ResolveElement resolves a NodeElement's content for requested against a
// node's translatability and the project's main locale.
func ResolveElement(el *project.NodeElement, requested, mainLocale string, translatable bool) (Content, bool) {
	return Resolve(el, requested, mainLocale, translatable)
}

// ResolveLabel resolves a Label's content for requested. Labels have no
// notion of node-level translatability, so they always honor the request
// and fall back to mainLocale the same way elements do.
func ResolveLabel(l *project.Label, requested, mainLocale string) (Content, bool) {
	return Resolve(l, requested, mainLocale, true)
}
