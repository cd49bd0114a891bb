package locale

import (
	"testing"

	"github.com/storyflowrt/engine/internal/project"
)

func elementWith(contents ...project.LocalizedContent) *project.NodeElement {
	return &project.NodeElement{ID: "e1", LocalizedContents: contents}
}

func TestResolve_ExactMatch(t *testing.T) {
	el := elementWith(
		project.LocalizedContent{LocaleCode: "en", Text: "Hello"},
		project.LocalizedContent{LocaleCode: "fr", Text: "Bonjour"},
	)
	c, ok := ResolveElement(el, "fr", "en", true)
	if !ok {
		t.Fatal("expected resolution to succeed")
	}
	if c.Text != "Bonjour" || c.NotTranslated {
		t.Errorf("got %+v, want fr text with NotTranslated=false", c)
	}
}

func TestResolve_FallsBackWhenTranslationMissing(t *testing.T) {
	el := elementWith(project.LocalizedContent{LocaleCode: "en", Text: "Hello"})
	c, ok := ResolveElement(el, "fr", "en", true)
	if !ok {
		t.Fatal("expected fallback resolution to succeed")
	}
	if c.Text != "Hello" || !c.NotTranslated {
		t.Errorf("got %+v, want main-locale fallback with NotTranslated=true", c)
	}
}

func TestResolve_FallsBackWhenTranslationEmpty(t *testing.T) {
	el := elementWith(
		project.LocalizedContent{LocaleCode: "en", Text: "Hello"},
		project.LocalizedContent{LocaleCode: "fr", Text: ""},
	)
	c, ok := ResolveElement(el, "fr", "en", true)
	if !ok {
		t.Fatal("expected fallback resolution to succeed")
	}
	if c.Text != "Hello" || !c.NotTranslated {
		t.Errorf("got %+v, want main-locale fallback with NotTranslated=true", c)
	}
}

func TestResolve_NonTranslatableNodeIgnoresRequestedLocale(t *testing.T) {
	el := elementWith(
		project.LocalizedContent{LocaleCode: "en", Text: "Hello"},
		project.LocalizedContent{LocaleCode: "fr", Text: "Bonjour"},
	)
	c, ok := ResolveElement(el, "fr", "en", false)
	if !ok {
		t.Fatal("expected resolution to succeed")
	}
	if c.Text != "Hello" || c.NotTranslated {
		t.Errorf("got %+v, want main-locale text without NotTranslated (intentional, not a fallback)", c)
	}
}

func TestResolve_NothingAvailable(t *testing.T) {
	el := elementWith()
	_, ok := ResolveElement(el, "fr", "en", true)
	if ok {
		t.Fatal("expected resolution to fail when no content exists at all")
	}
}

func TestResolveLabel(t *testing.T) {
	l := &project.Label{Key: "k", LocalizedContents: []project.LocalizedContent{
		{LocaleCode: "en", Text: "Continue"},
	}}
	c, ok := ResolveLabel(l, "de", "en")
	if !ok || c.Text != "Continue" || !c.NotTranslated {
		t.Errorf("got %+v, ok=%v, want main-locale fallback", c, ok)
	}
}
