package schema

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"server/internal/domain"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("test payload does not decode: %v", err)
	}
	return v
}

func validVariant() string {
	return `{
		"title": "Кроссовки Nike Air",
		"bullets": ["размер 42", "оригинал"],
		"description": "Лёгкие беговые кроссовки.",
		"keywords": ["кроссовки", "nike"],
		"attributes": {"size": "42", "color": "black"},
		"compliance_todos": [],
		"uncertainty": []
	}`
}

func validBundleJSON() string {
	v := validVariant()
	return `{
		"lang": "ru",
		"universal": {
			"product_type": "sneakers",
			"brand": "Nike",
			"model": null,
			"color": "black",
			"material": null,
			"condition": "used",
			"key_attributes": ["size 42"],
			"detected_text": ["AIR"],
			"uncertainty": []
		},
		"listings": {
			"olx": ` + v + `,
			"wildberries": ` + v + `,
			"ozon": ` + v + `
		}
	}`
}

func TestValidateAcceptsCompleteBundle(t *testing.T) {
	bundle, violations := Validate(decode(t, validBundleJSON()))
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if bundle.Lang != domain.LangRU {
		t.Fatalf("lang = %q, want ru", bundle.Lang)
	}
	if bundle.Universal.ProductType != "sneakers" {
		t.Fatalf("product_type = %q", bundle.Universal.ProductType)
	}
	if bundle.Universal.Brand == nil || *bundle.Universal.Brand != "Nike" {
		t.Fatalf("brand = %v, want Nike", bundle.Universal.Brand)
	}
	if bundle.Universal.Model != nil {
		t.Fatalf("model should be nil, got %v", *bundle.Universal.Model)
	}
	if len(bundle.Listings) != 3 {
		t.Fatalf("listings count = %d, want 3", len(bundle.Listings))
	}
	for _, mp := range domain.Marketplaces() {
		variant, ok := bundle.Listings[mp]
		if !ok {
			t.Fatalf("missing marketplace %s", mp)
		}
		if variant.Title == "" {
			t.Fatalf("empty title for %s", mp)
		}
		if variant.Attributes["size"] != "42" {
			t.Fatalf("attributes not carried for %s: %#v", mp, variant.Attributes)
		}
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	value := decode(t, validBundleJSON())
	first, firstViolations := Validate(value)
	second, secondViolations := Validate(value)
	if len(firstViolations) != 0 || len(secondViolations) != 0 {
		t.Fatalf("unexpected violations: %v / %v", firstViolations, secondViolations)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated validation produced different bundles")
	}
}

func TestValidateReportsMissingMarketplaces(t *testing.T) {
	raw := `{
		"lang": "en",
		"universal": {
			"product_type": "mug",
			"key_attributes": [],
			"detected_text": [],
			"uncertainty": []
		},
		"listings": {"olx": ` + validVariant() + `}
	}`
	bundle, violations := Validate(decode(t, raw))
	if bundle != nil {
		t.Fatalf("expected nil bundle on violations")
	}
	wantPaths := map[string]bool{
		"$.listings.wildberries": false,
		"$.listings.ozon":        false,
	}
	for _, v := range violations {
		if _, ok := wantPaths[v.Path]; ok {
			wantPaths[v.Path] = true
			if v.Reason != "missing marketplace variant" {
				t.Fatalf("reason = %q", v.Reason)
			}
		}
	}
	for path, seen := range wantPaths {
		if !seen {
			t.Fatalf("no violation reported for %s: %v", path, violations)
		}
	}
}

func TestValidateNeverWrapsSingleStringIntoList(t *testing.T) {
	variant := strings.Replace(validVariant(), `["размер 42", "оригинал"]`, `"размер 42"`, 1)
	raw := strings.Replace(validBundleJSON(), validVariant(), variant, 1)
	_, violations := Validate(decode(t, raw))
	if len(violations) == 0 {
		t.Fatalf("expected violation for single-string bullets")
	}
	found := false
	for _, v := range violations {
		if v.Path == "$.listings.olx.bullets" && v.Reason == "expected sequence of strings, got single string" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing bullets violation, got %v", violations)
	}
}

func TestValidateRejectsWrongTypes(t *testing.T) {
	raw := `{
		"lang": "de",
		"universal": {
			"product_type": 7,
			"brand": 1,
			"key_attributes": "oops",
			"detected_text": [],
			"uncertainty": [1, "ok"]
		},
		"listings": {}
	}`
	_, violations := Validate(decode(t, raw))
	wants := map[string]string{
		"$.lang":                     `expected one of ru|kz|en, got "de"`,
		"$.universal.product_type":   "expected string, got number",
		"$.universal.brand":          "expected string or null, got number",
		"$.universal.key_attributes": "expected sequence of strings, got single string",
		"$.universal.uncertainty[0]": "expected string, got number",
		"$.listings.olx":             "missing marketplace variant",
		"$.listings.wildberries":     "missing marketplace variant",
		"$.listings.ozon":            "missing marketplace variant",
	}
	got := make(map[string]string, len(violations))
	for _, v := range violations {
		got[v.Path] = v.Reason
	}
	for path, reason := range wants {
		if got[path] != reason {
			t.Fatalf("violation at %s = %q, want %q (all: %v)", path, got[path], reason, violations)
		}
	}
}

func TestValidateConvertsLosslessAttributeScalars(t *testing.T) {
	variant := strings.Replace(validVariant(), `{"size": "42", "color": "black"}`, `{"size": 42, "waterproof": true}`, 1)
	raw := strings.Replace(validBundleJSON(), validVariant(), variant, 1)
	bundle, violations := Validate(decode(t, raw))
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	attrs := bundle.Listings[domain.MarketplaceOLX].Attributes
	if attrs["size"] != "42" || attrs["waterproof"] != "true" {
		t.Fatalf("attributes = %#v", attrs)
	}
}

func TestValidateRejectsNestedAttributeValues(t *testing.T) {
	variant := strings.Replace(validVariant(), `{"size": "42", "color": "black"}`, `{"dims": {"w": 10}}`, 1)
	raw := strings.Replace(validBundleJSON(), validVariant(), variant, 1)
	_, violations := Validate(decode(t, raw))
	found := false
	for _, v := range violations {
		if v.Path == "$.listings.olx.attributes.dims" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected violation for nested attribute value, got %v", violations)
	}
}

func TestValidateRejectsUnknownMarketplaceKey(t *testing.T) {
	raw := strings.Replace(validBundleJSON(), `"olx": `, `"avito": `+validVariant()+`, "olx": `, 1)
	_, violations := Validate(decode(t, raw))
	found := false
	for _, v := range violations {
		if v.Path == "$.listings.avito" && v.Reason == "unexpected marketplace key" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected violation for unknown marketplace, got %v", violations)
	}
}

func TestValidateRejectsNonObjectRoot(t *testing.T) {
	_, violations := Validate(decode(t, `["not", "an", "object"]`))
	if len(violations) != 1 || violations[0].Path != "$" {
		t.Fatalf("unexpected violations: %v", violations)
	}
}

func TestFormatViolationsKeepsOrder(t *testing.T) {
	text := FormatViolations([]Violation{
		{Path: "$.a", Reason: "first"},
		{Path: "$.b", Reason: "second"},
	})
	want := "$.a: first\n$.b: second"
	if text != want {
		t.Fatalf("formatted = %q, want %q", text, want)
	}
}
