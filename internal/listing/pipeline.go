// Package listing implements the photo-to-listing generation pipeline: prompt
// assembly, model invocation, response parsing with schema validation, and the
// single bounded auto-fix pass.
package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

const (
	// DefaultMaxImages caps the number of photos per request.
	DefaultMaxImages = 8
	// DefaultModelTimeout bounds each model call independently, so a hang on
	// the corrective call is never masked by a fast first call.
	DefaultModelTimeout = 60 * time.Second
)

// Options configures a Pipeline.
type Options struct {
	Invoker      Invoker
	MaxImages    int
	ModelTimeout time.Duration
	Logger       zerolog.Logger
}

// Pipeline orchestrates one generation request end to end. It holds no mutable
// state: concurrent Generate calls share nothing but the invoker.
type Pipeline struct {
	invoker      Invoker
	maxImages    int
	modelTimeout time.Duration
	logger       zerolog.Logger
}

// Result is the terminal success outcome: the validated bundle plus elapsed
// wall time from prompt build start to final validation.
type Result struct {
	Bundle  *domain.ListingBundle
	Elapsed time.Duration
}

// NewPipeline constructs a Pipeline, applying defaults for unset options.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Invoker == nil {
		return nil, errors.New("listing: invoker is required")
	}
	maxImages := opts.MaxImages
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}
	timeout := opts.ModelTimeout
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &Pipeline{
		invoker:      opts.Invoker,
		maxImages:    maxImages,
		modelTimeout: timeout,
		logger:       opts.Logger,
	}, nil
}

// MaxImages returns the configured per-request photo cap.
func (p *Pipeline) MaxImages() int {
	return p.maxImages
}

// Generate runs the full pipeline for one request. It returns either a
// complete schema-valid bundle or a *Failure; there is no partial result.
//
// Only MalformedOutput and InvalidSchema from the first parse trigger the
// corrective pass, and the corrective pass runs at most once. Transport,
// auth, rate-limit and refusal failures propagate immediately.
func (p *Pipeline) Generate(ctx context.Context, req domain.GenerationRequest) (*Result, error) {
	if f := p.validateInput(req); f != nil {
		return nil, f
	}

	start := time.Now()
	prompt := BuildPrompt(req)

	raw, err := p.invoke(ctx, prompt, StageInvokingModel)
	if err != nil {
		return nil, err
	}

	bundle, parseFail := Parse(raw)
	if parseFail == nil {
		return &Result{Bundle: bundle, Elapsed: time.Since(start)}, nil
	}
	if !parseFail.Retryable() {
		return nil, parseFail
	}

	p.logger.Warn().
		Str("kind", string(parseFail.Kind)).
		Int("violations", len(parseFail.Violations)).
		Msg("model output invalid, attempting auto-fix")

	bundle, fixFail := p.correct(ctx, raw, parseFail)
	if fixFail != nil {
		return nil, fixFail
	}
	return &Result{Bundle: bundle, Elapsed: time.Since(start)}, nil
}

func (p *Pipeline) validateInput(req domain.GenerationRequest) *Failure {
	if len(req.Images) == 0 {
		return invalidInput("at least one image is required")
	}
	if len(req.Images) > p.maxImages {
		return invalidInput(fmt.Sprintf("too many images: %d, max %d", len(req.Images), p.maxImages))
	}
	for i, img := range req.Images {
		if len(img.Data) == 0 {
			return invalidInput(fmt.Sprintf("image %d is empty", i+1))
		}
	}
	if _, ok := domain.ParseLang(string(req.Lang)); !ok {
		return invalidInput(fmt.Sprintf("unsupported language %q", req.Lang))
	}
	return nil
}

// correct is the single-shot auto-fix pass. A second failure of any kind is
// terminal and comes back wrapped as GenerationFailed.
func (p *Pipeline) correct(ctx context.Context, prevRaw string, cause *Failure) (*domain.ListingBundle, *Failure) {
	fixPrompt := BuildFixPrompt(prevRaw, cause)

	raw, err := p.invoke(ctx, fixPrompt, StageCorrecting)
	if err != nil {
		return nil, wrapTerminal(err)
	}

	bundle, parseFail := Parse(raw)
	if parseFail != nil {
		parseFail.Stage = StageCorrecting
		return nil, wrapTerminal(parseFail)
	}
	return bundle, nil
}

// invoke performs one model call under its own timeout and normalizes any
// non-Failure error into a ModelUnavailable failure.
func (p *Pipeline) invoke(ctx context.Context, prompt Prompt, stage Stage) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.modelTimeout)
	defer cancel()

	raw, err := p.invoker.Complete(callCtx, prompt)
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			if f.Stage == "" {
				f.Stage = stage
			}
			return "", f
		}
		return "", &Failure{
			Kind:   FailModelUnavailable,
			Stage:  stage,
			Reason: "model call failed",
			Cause:  err,
		}
	}
	return raw, nil
}

func wrapTerminal(err error) *Failure {
	f := &Failure{
		Kind:   FailGenerationFailed,
		Stage:  StageCorrecting,
		Reason: "corrective attempt did not produce a valid listing bundle",
		Cause:  err,
	}
	var inner *Failure
	if errors.As(err, &inner) {
		f.RawOutput = inner.RawOutput
		f.Violations = inner.Violations
	}
	return f
}
