package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type localeContextKey struct{}

// LocaleKey stores the detected caption locale in the request context.
var LocaleKey = localeContextKey{}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// supportedLocales lists the locales caption templates exist for. Anything
// else falls back to the service default.
var supportedLocales = map[string]bool{
	"en": true,
	"id": true,
}

// countryLocales maps ISO country codes onto a caption locale where the
// market has one.
var countryLocales = map[string]string{
	"ID": "id",
}

// I18N detects the caller's caption locale: an explicit X-Locale header
// wins, then Accept-Language, then a country lookup on the client IP. The
// result is stored in the context for the job-creation handler.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale, lookup)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, lookup CountryLookup) string {
	if locale := normalizeLocale(r.Header.Get("X-Locale")); locale != "" {
		return locale
	}
	if locale := normalizeLocale(firstAcceptLanguage(r.Header.Get("Accept-Language"))); locale != "" {
		return locale
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil {
				if locale := countryLocales[strings.ToUpper(country)]; locale != "" {
					return locale
				}
			}
		}
	}
	if supportedLocales[fallback] {
		return fallback
	}
	return "en"
}

// normalizeLocale reduces a language tag to its primary subtag and keeps it
// only when a caption template exists for it.
func normalizeLocale(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if supportedLocales[tag] {
		return tag
	}
	return ""
}

func firstAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		if tag := strings.TrimSpace(strings.Split(part, ";")[0]); tag != "" {
			return tag
		}
	}
	return ""
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LocaleFromContext returns the detected caption locale, if any.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return ""
}
