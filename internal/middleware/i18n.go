package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"server/internal/domain"
)

type langContextKey struct{}
type countryContextKey struct{}

var (
	LangKey    = langContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// langMatcher maps negotiated Accept-Language tags onto the supported output
// languages. Kazakh is "kk" on the wire but "kz" in the listing API.
var langMatcher = language.NewMatcher([]language.Tag{
	language.Russian,
	language.MustParse("kk"),
	language.English,
})

var matcherLangs = []domain.Lang{domain.LangRU, domain.LangKZ, domain.LangEN}

// Lang detects the caller's preferred listing language and stores it in the
// request context. Precedence: X-Lang header, Accept-Language, GeoIP country,
// configured default. The detected value is only a default suggestion; the
// generate endpoint still takes an explicit lang field.
func Lang(defaultLang domain.Lang, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := resolveCountry(r, lookup)
			lang := detectLang(r, defaultLang, country)
			ctx := context.WithValue(r.Context(), LangKey, lang)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLang(r *http.Request, fallback domain.Lang, country string) domain.Lang {
	if v := r.Header.Get("X-Lang"); v != "" {
		if lang, ok := domain.ParseLang(v); ok {
			return lang
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if lang, ok := matchAcceptLanguage(accept); ok {
			return lang
		}
	}
	switch strings.ToUpper(country) {
	case "KZ":
		return domain.LangKZ
	case "RU", "BY":
		return domain.LangRU
	}
	if fallback != "" {
		return fallback
	}
	return domain.LangEN
}

func matchAcceptLanguage(accept string) (domain.Lang, bool) {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, idx, conf := langMatcher.Match(tags...)
	if conf == language.No {
		return "", false
	}
	return matcherLangs[idx], true
}

// LangFromContext returns the detected language, defaulting to English.
func LangFromContext(ctx context.Context) domain.Lang {
	if v, ok := ctx.Value(LangKey).(domain.Lang); ok {
		return v
	}
	return domain.LangEN
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
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

// resolveCountry resolves a best-effort ISO country code for the request.
func resolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}
