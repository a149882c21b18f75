// Package ai scores free-text complaints for symptom severity. A remote
// model endpoint is used when configured, with a keyword heuristic as the
// always-available fallback.
package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Assessment is a model's read of a complaint, before any vitals
// adjustment. Score is on the 0-10 severity scale, Confidence on 0-1.
type Assessment struct {
	Score              float64  `json:"score"`
	Confidence         float64  `json:"confidence"`
	KeySymptoms        []string `json:"key_symptoms"`
	ConcerningFindings []string `json:"concerning_findings"`
	RecommendedActions []string `json:"recommended_actions"`
	ModelVersion       string   `json:"model_version"`
}

// Scorer produces a severity assessment from complaint text.
type Scorer interface {
	// Name identifies the scorer implementation for logging.
	Name() string

	// Score assesses the complaint and reported symptoms.
	Score(ctx context.Context, complaint string, symptoms []string) (*Assessment, error)
}

// Config selects and tunes the scorer. An empty BaseURL means the
// heuristic scorer runs alone.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New builds the scorer stack: remote with heuristic fallback when a
// base URL is configured, heuristic only otherwise.
func New(cfg Config, logger zerolog.Logger) Scorer {
	heuristic := NewHeuristicScorer()
	if cfg.BaseURL == "" {
		return heuristic
	}
	return &fallbackScorer{
		primary:  NewRemoteScorer(cfg, logger),
		fallback: heuristic,
		logger:   logger,
	}
}

// fallbackScorer tries the primary scorer and falls back on any error.
type fallbackScorer struct {
	primary  Scorer
	fallback Scorer
	logger   zerolog.Logger
}

func (s *fallbackScorer) Name() string {
	return s.primary.Name() + "+" + s.fallback.Name()
}

func (s *fallbackScorer) Score(ctx context.Context, complaint string, symptoms []string) (*Assessment, error) {
	a, err := s.primary.Score(ctx, complaint, symptoms)
	if err == nil {
		return a, nil
	}
	s.logger.Warn().
		Err(err).
		Str("scorer", s.primary.Name()).
		Msg("remote severity scoring failed, using heuristic fallback")
	return s.fallback.Score(ctx, complaint, symptoms)
}
