package ai

import (
	"context"
	"strings"
)

const heuristicVersion = "heuristic-v1"

// severityTier pairs a keyword set with the severity it implies. Tiers are
// checked highest first; the first tier with a match decides the score.
type severityTier struct {
	score      float64
	concerning bool
	action     string
	keywords   []string
}

// HeuristicScorer classifies complaints by keyword matching. It never
// errors, which makes it the terminal fallback in the scorer stack.
type HeuristicScorer struct {
	tiers []severityTier
}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{
		tiers: []severityTier{
			{
				score:      8.5,
				concerning: true,
				action:     "Call emergency services immediately",
				keywords: []string{
					"not breathing", "unresponsive", "unconscious", "heart attack",
					"stroke", "severe bleeding", "choking", "seizure",
					"anaphylaxis", "overdose", "crushing chest pain",
				},
			},
			{
				score:      6.5,
				concerning: true,
				action:     "Seek urgent medical evaluation",
				keywords: []string{
					"chest pain", "difficulty breathing", "shortness of breath",
					"severe pain", "high fever", "broken bone", "deep cut",
					"concussion", "allergic reaction", "confusion", "fainting",
				},
			},
			{
				score:      4.5,
				concerning: false,
				action:     "Schedule a same-day clinical visit",
				keywords: []string{
					"vomiting", "dehydration", "burn", "sprain", "abdominal pain",
					"persistent cough", "migraine", "dizziness",
				},
			},
			{
				score:      2.0,
				concerning: false,
				action:     "Self-care with monitoring, follow up if symptoms worsen",
				keywords: []string{
					"minor cut", "rash", "sore throat", "cold symptoms",
					"ear pain", "mild headache", "runny nose", "congestion",
				},
			},
		},
	}
}

func (s *HeuristicScorer) Name() string { return "heuristic" }

// Score scans the complaint and symptom list against each tier, highest
// severity first. Confidence grows with the number of matched keywords.
func (s *HeuristicScorer) Score(_ context.Context, complaint string, symptoms []string) (*Assessment, error) {
	text := strings.ToLower(complaint)
	if len(symptoms) > 0 {
		text += " " + strings.ToLower(strings.Join(symptoms, " "))
	}

	for _, tier := range s.tiers {
		matched := matchKeywords(text, tier.keywords)
		if len(matched) == 0 {
			continue
		}

		confidence := 0.5 + 0.15*float64(len(matched))
		if confidence > 0.95 {
			confidence = 0.95
		}

		a := &Assessment{
			Score:              tier.score,
			Confidence:         confidence,
			KeySymptoms:        matched,
			RecommendedActions: []string{tier.action},
			ModelVersion:       heuristicVersion,
		}
		if tier.concerning {
			a.ConcerningFindings = matched
		}
		return a, nil
	}

	// Nothing recognized: low-severity default with low confidence so a
	// clinician knows the classification is weak.
	return &Assessment{
		Score:              2.0,
		Confidence:         0.3,
		RecommendedActions: []string{"Clinical review recommended, complaint did not match known patterns"},
		ModelVersion:       heuristicVersion,
	}, nil
}

func matchKeywords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}
