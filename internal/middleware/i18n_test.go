package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestDetectLang(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback domain.Lang
		country  string
		want     domain.Lang
	}{
		{
			name: "x-lang overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Lang", "kz")
			},
			country: "RU",
			want:    domain.LangKZ,
		},
		{
			name: "x-lang invalid is ignored",
			setup: func(r *http.Request) {
				r.Header.Set("X-Lang", "fr")
				r.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
			},
			want: domain.LangRU,
		},
		{
			name: "accept-language russian",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")
			},
			want: domain.LangRU,
		},
		{
			name: "accept-language kazakh maps to kz",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "kk-KZ,ru;q=0.8")
			},
			want: domain.LangKZ,
		},
		{
			name: "accept-language english",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			want: domain.LangEN,
		},
		{
			name:    "country kz",
			country: "KZ",
			want:    domain.LangKZ,
		},
		{
			name:    "country ru",
			country: "RU",
			want:    domain.LangRU,
		},
		{
			name:    "country by maps to russian",
			country: "BY",
			want:    domain.LangRU,
		},
		{
			name:     "configured fallback",
			country:  "US",
			fallback: domain.LangRU,
			want:     domain.LangRU,
		},
		{
			name: "default to en",
			want: domain.LangEN,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			got := detectLang(req, tc.fallback, tc.country)
			if got != tc.want {
				t.Fatalf("detectLang() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "kz")
				r.Header.Set("CF-IPCountry", "ru")
			},
			want: "KZ",
		},
		{
			name: "cloudflare header",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "ru")
			},
			want: "RU",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					t.Fatalf("unexpected ip: %s", ip)
				}
				return "kz", nil
			},
			want: "KZ",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			got := resolveCountry(req, tc.resolver)
			if got != tc.want {
				t.Fatalf("resolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLangMiddlewareStoresDetectedValues(t *testing.T) {
	var gotLang domain.Lang
	var gotCountry string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = LangFromContext(r.Context())
		gotCountry = CountryFromContext(r.Context())
	})

	handler := Lang(domain.LangEN, func(ip string) (string, error) {
		return "KZ", nil
	})(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.4:80"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotLang != domain.LangKZ {
		t.Fatalf("lang = %q, want kz", gotLang)
	}
	if gotCountry != "KZ" {
		t.Fatalf("country = %q, want KZ", gotCountry)
	}
}

func TestLangFromContextDefault(t *testing.T) {
	if got := LangFromContext(context.Background()); got != domain.LangEN {
		t.Fatalf("LangFromContext() default = %q, want en", got)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	if got := ClientIP(req); got != "198.51.100.7" {
		t.Fatalf("ClientIP() = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("ClientIP() forwarded = %q", got)
	}
}
