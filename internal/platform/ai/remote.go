package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// RemoteScorer calls an external scoring service over HTTP.
type RemoteScorer struct {
	client *resty.Client
	model  string
	logger zerolog.Logger
}

type remoteScoreRequest struct {
	Complaint string   `json:"complaint"`
	Symptoms  []string `json:"symptoms,omitempty"`
	Model     string   `json:"model,omitempty"`
}

type remoteScoreResponse struct {
	Score              float64  `json:"score"`
	Confidence         float64  `json:"confidence"`
	KeySymptoms        []string `json:"key_symptoms"`
	ConcerningFindings []string `json:"concerning_findings"`
	RecommendedActions []string `json:"recommended_actions"`
	ModelVersion       string   `json:"model_version"`
}

func NewRemoteScorer(cfg Config, logger zerolog.Logger) *RemoteScorer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &RemoteScorer{client: client, model: cfg.Model, logger: logger}
}

func (s *RemoteScorer) Name() string { return "remote" }

func (s *RemoteScorer) Score(ctx context.Context, complaint string, symptoms []string) (*Assessment, error) {
	var out remoteScoreResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(remoteScoreRequest{Complaint: complaint, Symptoms: symptoms, Model: s.model}).
		SetResult(&out).
		Post("/v1/score")
	if err != nil {
		return nil, fmt.Errorf("score request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scoring service returned %d", resp.StatusCode())
	}

	// The service is trusted for content but not for ranges.
	if out.Score < 0 {
		out.Score = 0
	}
	if out.Score > 10 {
		out.Score = 10
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	if out.ModelVersion == "" {
		out.ModelVersion = s.model
	}

	return &Assessment{
		Score:              out.Score,
		Confidence:         out.Confidence,
		KeySymptoms:        out.KeySymptoms,
		ConcerningFindings: out.ConcerningFindings,
		RecommendedActions: out.RecommendedActions,
		ModelVersion:       out.ModelVersion,
	}, nil
}
