// Package schema validates decoded model output against the ListingBundle
// shape. It is an explicit structural checker rather than tag-driven
// unmarshalling: the corrective prompt needs a path-qualified description of
// every violation, so each check reports where and why it failed.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"server/internal/domain"
)

// Violation describes one structural or type mismatch at a field path.
type Violation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.Path + ": " + v.Reason
}

// FormatViolations renders violations one per line, in order. The corrective
// prompt embeds this text verbatim.
func FormatViolations(violations []Violation) string {
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

// Validate checks a generically decoded value against the ListingBundle shape
// and returns the typed bundle on success, or the ordered violation list.
// Validation is pure and idempotent: re-validating an accepted value yields
// the same bundle and no violations.
func Validate(v any) (*domain.ListingBundle, []Violation) {
	c := &checker{}
	root, ok := c.object(v, "$")
	if !ok {
		return nil, c.violations
	}

	bundle := &domain.ListingBundle{
		Listings: make(map[domain.Marketplace]domain.ListingVariant, len(domain.Marketplaces())),
	}

	if raw, ok := c.require(root, "$", "lang"); ok {
		if s, ok := c.str(raw, "$.lang"); ok {
			lang, valid := domain.ParseLang(s)
			if !valid {
				c.add("$.lang", fmt.Sprintf("expected one of %s, got %q", langChoices(), s))
			} else {
				bundle.Lang = lang
			}
		}
	}

	if raw, ok := c.require(root, "$", "universal"); ok {
		if obj, ok := c.object(raw, "$.universal"); ok {
			bundle.Universal = c.universal(obj, "$.universal")
		}
	}

	if raw, ok := c.require(root, "$", "listings"); ok {
		if obj, ok := c.object(raw, "$.listings"); ok {
			for _, mp := range domain.Marketplaces() {
				raw, present := obj[string(mp)]
				path := "$.listings." + string(mp)
				if !present {
					c.add(path, "missing marketplace variant")
					continue
				}
				vObj, ok := c.object(raw, path)
				if !ok {
					continue
				}
				bundle.Listings[mp] = c.variant(vObj, path)
			}
			for _, key := range sortedKeys(obj) {
				if !isMarketplace(key) {
					c.add("$.listings."+key, "unexpected marketplace key")
				}
			}
		}
	}

	if len(c.violations) > 0 {
		return nil, c.violations
	}
	return bundle, nil
}

type checker struct {
	violations []Violation
}

func (c *checker) add(path, reason string) {
	c.violations = append(c.violations, Violation{Path: path, Reason: reason})
}

func (c *checker) require(obj map[string]any, path, key string) (any, bool) {
	raw, ok := obj[key]
	if !ok {
		c.add(path+"."+key, "required field is missing")
		return nil, false
	}
	return raw, true
}

func (c *checker) object(v any, path string) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		c.add(path, fmt.Sprintf("expected object, got %s", typeName(v)))
		return nil, false
	}
	return obj, true
}

func (c *checker) str(v any, path string) (string, bool) {
	s, ok := v.(string)
	if !ok {
		c.add(path, fmt.Sprintf("expected string, got %s", typeName(v)))
		return "", false
	}
	return s, true
}

// nullableStr accepts a string or JSON null. Anything else is a violation.
func (c *checker) nullableStr(v any, path string) *string {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		c.add(path, fmt.Sprintf("expected string or null, got %s", typeName(v)))
		return nil
	}
	return &s
}

// strList accepts only a sequence of strings. A singleton string is never
// auto-wrapped: that would hide a schema drift the corrector should fix.
func (c *checker) strList(v any, path string) []string {
	if _, isStr := v.(string); isStr {
		c.add(path, "expected sequence of strings, got single string")
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		c.add(path, fmt.Sprintf("expected sequence of strings, got %s", typeName(v)))
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			c.add(fmt.Sprintf("%s[%d]", path, i), fmt.Sprintf("expected string, got %s", typeName(item)))
			continue
		}
		out = append(out, s)
	}
	return out
}

// strMap accepts an object whose values are strings, or scalars with a
// lossless string form (numbers, booleans). Nested objects and arrays are
// violations.
func (c *checker) strMap(v any, path string) map[string]string {
	obj, ok := v.(map[string]any)
	if !ok {
		c.add(path, fmt.Sprintf("expected object of string values, got %s", typeName(v)))
		return nil
	}
	out := make(map[string]string, len(obj))
	for _, key := range sortedKeys(obj) {
		s, ok := losslessString(obj[key])
		if !ok {
			c.add(path+"."+key, fmt.Sprintf("expected string value, got %s", typeName(obj[key])))
			continue
		}
		out[key] = s
	}
	return out
}

func (c *checker) universal(obj map[string]any, path string) domain.UniversalProduct {
	var u domain.UniversalProduct
	if raw, ok := c.require(obj, path, "product_type"); ok {
		u.ProductType, _ = c.str(raw, path+".product_type")
	}
	u.Brand = c.nullableStr(obj["brand"], path+".brand")
	u.Model = c.nullableStr(obj["model"], path+".model")
	u.Color = c.nullableStr(obj["color"], path+".color")
	u.Material = c.nullableStr(obj["material"], path+".material")
	u.Condition = c.nullableStr(obj["condition"], path+".condition")
	if raw, ok := c.require(obj, path, "key_attributes"); ok {
		u.KeyAttributes = c.strList(raw, path+".key_attributes")
	}
	if raw, ok := c.require(obj, path, "detected_text"); ok {
		u.DetectedText = c.strList(raw, path+".detected_text")
	}
	if raw, ok := c.require(obj, path, "uncertainty"); ok {
		u.Uncertainty = c.strList(raw, path+".uncertainty")
	}
	return u
}

func (c *checker) variant(obj map[string]any, path string) domain.ListingVariant {
	var lv domain.ListingVariant
	if raw, ok := c.require(obj, path, "title"); ok {
		lv.Title, _ = c.str(raw, path+".title")
	}
	if raw, ok := c.require(obj, path, "bullets"); ok {
		lv.Bullets = c.strList(raw, path+".bullets")
	}
	if raw, ok := c.require(obj, path, "description"); ok {
		lv.Description, _ = c.str(raw, path+".description")
	}
	if raw, ok := c.require(obj, path, "keywords"); ok {
		lv.Keywords = c.strList(raw, path+".keywords")
	}
	if raw, ok := c.require(obj, path, "attributes"); ok {
		lv.Attributes = c.strMap(raw, path+".attributes")
	}
	if raw, ok := c.require(obj, path, "compliance_todos"); ok {
		lv.ComplianceTodos = c.strList(raw, path+".compliance_todos")
	}
	if raw, ok := c.require(obj, path, "uncertainty"); ok {
		lv.Uncertainty = c.strList(raw, path+".uncertainty")
	}
	return lv
}

func losslessString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func isMarketplace(key string) bool {
	for _, mp := range domain.Marketplaces() {
		if key == string(mp) {
			return true
		}
	}
	return false
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func langChoices() string {
	tags := domain.Langs()
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}
