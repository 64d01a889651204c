package caption

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Static is a locale-aware Captioner that needs no external provider. It is
// wired in development configs and wherever the AI captioner is not set up.
type Static struct {
	defaultLocale string
}

// NewStatic builds a static captioner defaulting to the given locale
// ("en", "id") when a job carries none.
func NewStatic(locale string) *Static {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		locale = "en"
	}
	return &Static{defaultLocale: locale}
}

// Caption composes a short caption plus hashtags from the theme and
// keywords, in the locale detected for the job's creator.
func (s *Static) Caption(_ context.Context, locale, theme string, keywords []string) (string, error) {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		locale = s.defaultLocale
	}
	titler := cases.Title(languageFor(locale))
	title := strings.TrimSpace(theme)
	if title == "" {
		title = "New Post"
	}
	title = titler.String(title)

	var line string
	switch locale {
	case "id":
		line = fmt.Sprintf("%s — geser untuk melihat selengkapnya.", title)
	default:
		line = fmt.Sprintf("%s — swipe through for the full story.", title)
	}

	tags := hashtags(keywords, 5)
	if len(tags) == 0 {
		return line, nil
	}
	return line + "\n\n" + strings.Join(tags, " "), nil
}

func languageFor(locale string) language.Tag {
	switch locale {
	case "id":
		return language.Indonesian
	default:
		return language.English
	}
}

func hashtags(keywords []string, limit int) []string {
	var tags []string
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		tag := strings.ToLower(strings.Join(strings.Fields(kw), ""))
		tag = strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, "#"+tag)
		if len(tags) == limit {
			break
		}
	}
	return tags
}
