package listing

import (
	"encoding/json"
	"strings"

	"server/internal/domain"
	"server/internal/listing/schema"
)

// Parse decodes raw model text and validates it against the ListingBundle
// shape. It is a pure function: no network, no retries. Failures carry the raw
// text so the corrector can echo it back to the model.
func Parse(raw string) (*domain.ListingBundle, *Failure) {
	fragment := extractJSONFragment(raw)
	if fragment == "" {
		return nil, &Failure{
			Kind:      FailMalformedOutput,
			Stage:     StageParsing,
			Reason:    "model returned no JSON content",
			RawOutput: raw,
		}
	}

	dec := json.NewDecoder(strings.NewReader(fragment))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, &Failure{
			Kind:      FailMalformedOutput,
			Stage:     StageParsing,
			Reason:    "invalid JSON: " + err.Error(),
			RawOutput: raw,
			Cause:     err,
		}
	}

	bundle, violations := schema.Validate(value)
	if len(violations) > 0 {
		return nil, &Failure{
			Kind:       FailInvalidSchema,
			Stage:      StageParsing,
			Reason:     "output does not match the listing bundle schema",
			RawOutput:  raw,
			Violations: violations,
		}
	}
	return bundle, nil
}

// extractJSONFragment trims markdown code fences and surrounding prose so the
// decoder sees only the JSON object the model produced.
func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	} else if start < 0 || end < 0 {
		return ""
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
