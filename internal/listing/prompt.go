package listing

import (
	"context"
	"fmt"
	"strings"

	"server/internal/domain"
	"server/internal/listing/schema"
)

// ImageRef is one inline image forwarded to the model. Bytes are carried
// verbatim; encoding to the provider's wire format happens inside the invoker.
type ImageRef struct {
	MIME string
	Data []byte
}

// Prompt is the provider-neutral generation request produced by the builder.
// It is deterministic for identical inputs and preserves image order.
type Prompt struct {
	Instruction string
	Images      []ImageRef
}

// Invoker sends one prompt to the external vision-language model and returns
// its raw textual response. Implementations do not retry; transport, auth,
// rate-limit and refusal failures come back as *Failure.
type Invoker interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

const defaultImageMIME = "image/jpeg"

// bundleShape spells out the exact JSON contract the model must follow. The
// validator in listing/schema enforces the same shape.
const bundleShape = `{
  "lang": "ru|kz|en",
  "universal": {
    "product_type": "string",
    "brand": "string|null",
    "model": "string|null",
    "color": "string|null",
    "material": "string|null",
    "condition": "string|null",
    "key_attributes": ["..."],
    "detected_text": ["..."],
    "uncertainty": ["..."]
  },
  "listings": {
    "olx": {
      "title": "string",
      "bullets": ["..."],
      "description": "string",
      "keywords": ["..."],
      "attributes": {"key": "value"},
      "compliance_todos": ["..."],
      "uncertainty": ["..."]
    },
    "wildberries": { "...same fields..." },
    "ozon": { "...same fields..." }
  }
}`

// BuildPrompt assembles the outbound generation request for a validated
// GenerationRequest. Image bytes are referenced untouched and in order; the
// first image is treated by the model as the primary angle.
func BuildPrompt(req domain.GenerationRequest) Prompt {
	sb := &strings.Builder{}
	sb.WriteString("You generate product listings from photos for Kazakhstan/CIS marketplaces.\n\n")
	sb.WriteString("Requirements:\n")
	sb.WriteString("1) First build \"universal\" using ONLY what is visible in the photos.\n")
	sb.WriteString("2) Then generate 3 marketplace variants: olx, wildberries, ozon.\n")
	sb.WriteString("3) Do NOT invent facts. If uncertain, put it into \"uncertainty\" (and/or \"compliance_todos\").\n")
	fmt.Fprintf(sb, "4) Output language must be: %s.\n", req.Lang)
	sb.WriteString("5) If the user hint contradicts the photos, mention that in \"uncertainty\".\n\n")
	sb.WriteString("User hint (may be empty):\n")
	sb.WriteString(req.Hint)
	sb.WriteString("\n\nReturn ONLY a valid JSON object that matches EXACTLY this structure:\n\n")
	sb.WriteString(bundleShape)
	sb.WriteString("\n\nAll fields must be present, even if lists are empty.")

	images := make([]ImageRef, len(req.Images))
	for i, img := range req.Images {
		mime := img.MIME
		if mime == "" {
			mime = defaultImageMIME
		}
		images[i] = ImageRef{MIME: mime, Data: img.Data}
	}
	return Prompt{Instruction: sb.String(), Images: images}
}

// BuildFixPrompt assembles the single corrective follow-up: the previous raw
// output plus a machine-readable description of what was wrong. The photos are
// not re-sent; the model only has to repair its own JSON.
func BuildFixPrompt(rawOutput string, f *Failure) Prompt {
	sb := &strings.Builder{}
	sb.WriteString("Your JSON failed validation. Fix the JSON to match this structure EXACTLY.\n")
	sb.WriteString("Return ONLY valid JSON.\n\n")
	sb.WriteString("Required structure:\n")
	sb.WriteString(bundleShape)
	sb.WriteString("\n\nValidation errors:\n")
	if len(f.Violations) > 0 {
		sb.WriteString(schema.FormatViolations(f.Violations))
	} else {
		sb.WriteString(f.Reason)
	}
	sb.WriteString("\n\nPrevious JSON:\n")
	sb.WriteString(rawOutput)
	return Prompt{Instruction: sb.String()}
}
