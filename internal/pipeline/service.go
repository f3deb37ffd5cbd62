package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/muhammadolammi/careercards/internal/entity"
	"github.com/muhammadolammi/careercards/internal/metrics"
	"github.com/muhammadolammi/careercards/internal/prompt"
	"github.com/muhammadolammi/careercards/internal/resolver"
	"go.uber.org/zap"
)

type GenerateRequest struct {
	Goal          string `json:"goal"`
	IndustryLabel string `json:"industryLabel"`
	SourceText    string `json:"sourceText,omitempty"`
}

// EntityBatch is the result of GenerateEntities. Fallback is set when the
// entities were synthesized instead of derived from the model; Reason then
// describes the failure.
type EntityBatch struct {
	Entities []entity.Entity `json:"entities"`
	Fallback bool            `json:"fallback"`
	Reason   string          `json:"reason,omitempty"`
}

type ProfileReport struct {
	Summary        string                 `json:"summary"`
	ReadinessScore int                    `json:"readiness_score"`
	KeyExperiences []string               `json:"key_experiences"`
	Strengths      []string               `json:"strengths"`
	Gaps           []string               `json:"gaps"`
	Recommendation string                 `json:"recommendation"`
	Matches        []resolver.MatchResult `json:"matches"`
	MatchRate      float64                `json:"match_rate"`
}

// Service exposes the two model-backed operations. Generation may fall back to
// synthetic entities; profile analysis only ever returns real model output.
type Service struct {
	generate *Endpoint[[]entity.Entity]
	analyze  *Endpoint[ProfileReport]
	logger   *zap.Logger
	metrics  *metrics.Manager
}

func NewService(gateway Inferrer, registry *prompt.Registry, opts ...Option) (*Service, error) {
	s := &Service{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.generate, err = NewEndpoint[[]entity.Entity](prompt.GenerateEntitiesV1).
		Require("goal", "industry_label").
		Decode(DecodeEntities).
		Fallback(func(params map[string]string) []entity.Entity {
			return SyntheticEntities(params["goal"], params["industry_label"])
		}).
		Logger(s.logger).
		Metrics(s.metrics).
		Build(gateway, registry)
	if err != nil {
		return nil, err
	}

	s.analyze, err = NewEndpoint[ProfileReport](prompt.AnalyzeProfileV1).
		Require("goal", "industry_label", "entities").
		Decode(decodeProfile).
		Logger(s.logger).
		Metrics(s.metrics).
		Build(gateway, registry)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GenerateEntities asks the model for experience entities. Inference,
// extraction and schema failures yield a Fallback batch rather than an error;
// missing parameters and cancellation are returned as errors.
func (s *Service) GenerateEntities(ctx context.Context, req GenerateRequest) (EntityBatch, error) {
	out, err := s.generate.Call(ctx, map[string]string{
		"goal":           req.Goal,
		"industry_label": req.IndustryLabel,
		"source_text":    strings.TrimSpace(req.SourceText),
	})
	if err != nil {
		return EntityBatch{}, err
	}
	batch := EntityBatch{Entities: out.Value, Fallback: out.Fallback}
	if out.Cause != nil {
		batch.Reason = out.Cause.Error()
	}
	return batch, nil
}

// AnalyzeProfile scores how well pool supports the goal and resolves the
// experiences the model cites against pool.
func (s *Service) AnalyzeProfile(ctx context.Context, goal, industryLabel string, pool []entity.Entity) (ProfileReport, error) {
	out, err := s.analyze.Call(ctx, map[string]string{
		"goal":           goal,
		"industry_label": industryLabel,
		"entities":       describeEntities(pool),
	})
	if err != nil {
		return ProfileReport{}, err
	}

	report := out.Value
	res := resolver.Resolve(report.KeyExperiences, pool)
	report.Matches = res.Matches
	report.MatchRate = res.MatchRate()

	s.metrics.Resolution(report.MatchRate, res.KindCounts())
	s.logger.Info("profile analyzed",
		zap.Int("readiness_score", report.ReadinessScore),
		zap.Int("referenced", res.Total),
		zap.Int("matched", res.Matched),
		zap.Float64("match_rate", report.MatchRate))
	return report, nil
}

// describeEntities renders pool one entity per line as "name | category | summary".
func describeEntities(pool []entity.Entity) string {
	var b strings.Builder
	for _, e := range pool {
		fmt.Fprintf(&b, "- %s | %s | %s\n", e.Preview.Name, e.Category, e.Preview.OneLineSummary)
	}
	return b.String()
}
