package triage

import (
	"fmt"
	"strings"

	"github.com/triagebios/triage/internal/domain/vitals"
)

// Severity scores live on a 0-10 scale.
const (
	minScore = 0.0
	maxScore = 10.0
)

// Urgency ladder bounds, evaluated against the final fused score.
const (
	criticalThreshold = 8.0
	urgentThreshold   = 6.0
	standardThreshold = 4.0
)

// confidenceSpread widens the score interval as confidence drops: the
// margin on each side is (1 - confidence) * confidenceSpread.
const confidenceSpread = 2.0

const (
	noVitalsExplanation     = "Score based on symptom analysis alone - no vitals data available"
	normalVitalsExplanation = "Vital signs within normal ranges - no score adjustment"
	genericVitalsPhrase     = "abnormal vital signs"
)

// Fuse combines the symptom base score with the vitals boost. Clamping is
// applied on every fusion; the result never leaves [0, 10] for any input
// pair, including a base above 10 or a boost below zero.
func Fuse(base, boost float64) float64 {
	return clamp(base + boost)
}

func clamp(score float64) float64 {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// UrgencyFor derives the urgency bucket from a final severity score.
func UrgencyFor(score float64) Urgency {
	switch {
	case score >= criticalThreshold:
		return UrgencyCritical
	case score >= urgentThreshold:
		return UrgencyUrgent
	case score >= standardThreshold:
		return UrgencyStandard
	default:
		return UrgencyNonUrgent
	}
}

// ConfidenceBounds converts scorer confidence into an interval around the
// final score, clamped to the severity scale.
func ConfidenceBounds(score, confidence float64) (lower, upper float64) {
	margin := (1 - confidence) * confidenceSpread
	return clamp(score - margin), clamp(score + margin)
}

// BoostExplanation renders the human-readable account of how vitals moved
// the score. The specific phrases cover heart rate, oxygen saturation, and
// temperature; a boost driven only by blood pressure or respiratory rate
// gets a generic phrase.
func BoostExplanation(r *vitals.Reading, boost float64, th vitals.Thresholds) string {
	if r == nil {
		return noVitalsExplanation
	}
	if boost == 0 {
		return normalVitalsExplanation
	}

	var phrases []string
	if r.HeartRate != nil {
		switch {
		case *r.HeartRate > th.HighHeartRate:
			phrases = append(phrases, "elevated heart rate")
		case *r.HeartRate < th.LowHeartRate:
			phrases = append(phrases, "low heart rate")
		}
	}
	if r.OxygenSaturation != nil && *r.OxygenSaturation < th.LowSpO2 {
		phrases = append(phrases, "low oxygen saturation")
	}
	if r.Temperature != nil && *r.Temperature > th.FeverTemp {
		phrases = append(phrases, "fever")
	}
	if len(phrases) == 0 {
		phrases = append(phrases, genericVitalsPhrase)
	}
	return fmt.Sprintf("Vitals adjusted severity by %+.1f points: %s", boost, strings.Join(phrases, ", "))
}
