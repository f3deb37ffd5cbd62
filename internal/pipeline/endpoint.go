// Package pipeline turns a prompt template into a typed model call:
// render, infer, extract, validate, and optionally fall back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/muhammadolammi/careercards/internal/extract"
	"github.com/muhammadolammi/careercards/internal/inference"
	"github.com/muhammadolammi/careercards/internal/metrics"
	"github.com/muhammadolammi/careercards/internal/prompt"
	"go.uber.org/zap"
)

// Inferrer is satisfied by *inference.Gateway.
type Inferrer interface {
	Infer(ctx context.Context, prompt string) (string, error)
}

// Outcome is the result of one endpoint call. When Fallback is set, Value was
// synthesized and Cause holds the failure it replaced.
type Outcome[T any] struct {
	Value    T
	Fallback bool
	RawText  string
	Cause    error
}

// Builder collects the pieces of an Endpoint. Build it once and reuse it.
type Builder[T any] struct {
	templateID string
	required   []string
	decode     func(extract.Result) (T, error)
	fallback   func(params map[string]string) T
	logger     *zap.Logger
	metrics    *metrics.Manager
}

func NewEndpoint[T any](templateID string) *Builder[T] {
	return &Builder[T]{templateID: templateID}
}

// Require adds parameters that must be non-blank before the model is called,
// on top of the ones the template itself declares required.
func (b *Builder[T]) Require(params ...string) *Builder[T] {
	b.required = append(b.required, params...)
	return b
}

// Decode sets the schema validator that turns an extracted payload into T.
func (b *Builder[T]) Decode(fn func(extract.Result) (T, error)) *Builder[T] {
	b.decode = fn
	return b
}

// Fallback permits a deterministic substitute value when inference, extraction
// or validation fails. Endpoints without one surface those failures.
func (b *Builder[T]) Fallback(fn func(params map[string]string) T) *Builder[T] {
	b.fallback = fn
	return b
}

func (b *Builder[T]) Logger(l *zap.Logger) *Builder[T] {
	b.logger = l
	return b
}

func (b *Builder[T]) Metrics(m *metrics.Manager) *Builder[T] {
	b.metrics = m
	return b
}

func (b *Builder[T]) Build(gateway Inferrer, registry *prompt.Registry) (*Endpoint[T], error) {
	if gateway == nil || registry == nil {
		return nil, fmt.Errorf("%w: %s: gateway and registry are required", ErrInvalidEndpoint, b.templateID)
	}
	if b.decode == nil {
		return nil, fmt.Errorf("%w: %s: no decoder", ErrInvalidEndpoint, b.templateID)
	}
	tmpl, ok := registry.Lookup(b.templateID)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidEndpoint, prompt.ErrUnknownTemplate, b.templateID)
	}
	for _, p := range b.required {
		if !slices.Contains(tmpl.Required, p) && !slices.Contains(tmpl.Optional, p) {
			return nil, fmt.Errorf("%w: %s does not declare parameter %q", ErrInvalidEndpoint, b.templateID, p)
		}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Endpoint[T]{
		templateID: b.templateID,
		required:   slices.Clone(b.required),
		decode:     b.decode,
		fallback:   b.fallback,
		gateway:    gateway,
		registry:   registry,
		logger:     logger.With(zap.String("endpoint", b.templateID)),
		metrics:    b.metrics,
	}, nil
}

type Endpoint[T any] struct {
	templateID string
	required   []string
	decode     func(extract.Result) (T, error)
	fallback   func(params map[string]string) T
	gateway    Inferrer
	registry   *prompt.Registry
	logger     *zap.Logger
	metrics    *metrics.Manager
}

func (e *Endpoint[T]) TemplateID() string { return e.templateID }

// Call renders the template with params, sends it through the gateway and
// decodes the reply. Missing parameters and cancellation are always returned
// as errors; other failures become a fallback Outcome when the endpoint has one.
func (e *Endpoint[T]) Call(ctx context.Context, params map[string]string) (Outcome[T], error) {
	for _, p := range e.required {
		if strings.TrimSpace(params[p]) == "" {
			return Outcome[T]{}, &prompt.MissingParamError{TemplateID: e.templateID, Param: p}
		}
	}
	text, err := e.registry.Render(e.templateID, params)
	if err != nil {
		return Outcome[T]{}, err
	}

	raw, err := e.gateway.Infer(ctx, text)
	if err != nil {
		if errors.Is(err, inference.ErrCancelled) || ctx.Err() != nil {
			return Outcome[T]{}, err
		}
		var infErr *inference.Error
		if errors.As(err, &infErr) {
			raw = infErr.LastRawText
		}
		e.metrics.PayloadFailure(e.templateID, "inference")
		return e.fail(params, raw, "inference", err)
	}

	res, err := extract.Extract(raw)
	if err != nil {
		kind := "malformed"
		if errors.Is(err, extract.ErrEmpty) {
			kind = "empty"
		}
		e.metrics.PayloadFailure(e.templateID, kind)
		return e.fail(params, raw, kind, err)
	}

	v, err := e.decode(res)
	if err != nil {
		e.metrics.PayloadFailure(e.templateID, "schema")
		return e.fail(params, raw, "schema", err)
	}
	return Outcome[T]{Value: v, RawText: raw}, nil
}

func (e *Endpoint[T]) fail(params map[string]string, raw, stage string, err error) (Outcome[T], error) {
	if e.fallback == nil {
		e.logger.Warn("endpoint failed", zap.String("stage", stage), zap.Error(err))
		return Outcome[T]{RawText: raw, Cause: err}, err
	}
	e.metrics.Fallback(e.templateID)
	e.logger.Warn("serving fallback payload", zap.String("stage", stage), zap.Error(err))
	return Outcome[T]{Value: e.fallback(params), Fallback: true, RawText: raw, Cause: err}, nil
}
