package triage

import (
	"math"
	"testing"

	"github.com/triagebios/triage/internal/domain/vitals"
)

func ptrFloat(f float64) *float64 { return &f }
func ptrStr(s string) *string     { return &s }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFuse_ClampsEveryFusion(t *testing.T) {
	cases := []struct {
		name  string
		base  float64
		boost float64
		want  float64
	}{
		{"plain sum", 5.0, 2.5, 7.5},
		{"sum above scale", 9.0, 2.5, 10.0},
		{"base already above scale", 12.0, 0.0, 10.0},
		{"negative boost below zero", 1.0, -3.0, 0.0},
		{"zero inputs", 0.0, 0.0, 0.0},
		{"lands exactly on top", 7.5, 2.5, 10.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fuse(tc.base, tc.boost); got != tc.want {
				t.Errorf("Fuse(%v, %v) = %v, want %v", tc.base, tc.boost, got, tc.want)
			}
		})
	}
}

func TestUrgencyFor_Ladder(t *testing.T) {
	cases := []struct {
		score float64
		want  Urgency
	}{
		{10.0, UrgencyCritical},
		{8.0, UrgencyCritical},
		{7.999, UrgencyUrgent},
		{6.0, UrgencyUrgent},
		{5.999, UrgencyStandard},
		{4.0, UrgencyStandard},
		{3.999, UrgencyNonUrgent},
		{0.0, UrgencyNonUrgent},
	}
	for _, tc := range cases {
		if got := UrgencyFor(tc.score); got != tc.want {
			t.Errorf("UrgencyFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

// A base of 5.0 with HR 125 and SpO2 93 boosts by 1.0 + 1.5 and lands in
// the urgent bucket.
func TestFuse_TachycardicHypoxicPatient(t *testing.T) {
	r := &vitals.Reading{HeartRate: ptrFloat(125), OxygenSaturation: ptrFloat(93)}
	boost, _ := vitals.SeverityBoost(r, vitals.DefaultThresholds())
	if boost != 2.5 {
		t.Fatalf("boost = %v, want 2.5", boost)
	}
	score := Fuse(5.0, boost)
	if score != 7.5 {
		t.Errorf("score = %v, want 7.5", score)
	}
	if got := UrgencyFor(score); got != UrgencyUrgent {
		t.Errorf("urgency = %s, want %s", got, UrgencyUrgent)
	}
}

func TestConfidenceBounds(t *testing.T) {
	cases := []struct {
		name       string
		score      float64
		confidence float64
		wantLower  float64
		wantUpper  float64
	}{
		{"high confidence narrows", 7.5, 0.8, 7.1, 7.9},
		{"full confidence collapses", 5.0, 1.0, 5.0, 5.0},
		{"zero confidence widens fully", 5.0, 0.0, 3.0, 7.0},
		{"upper clamped at scale top", 9.5, 0.5, 8.5, 10.0},
		{"lower clamped at zero", 0.5, 0.5, 0.0, 1.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lower, upper := ConfidenceBounds(tc.score, tc.confidence)
			if !almostEqual(lower, tc.wantLower) {
				t.Errorf("lower = %v, want %v", lower, tc.wantLower)
			}
			if !almostEqual(upper, tc.wantUpper) {
				t.Errorf("upper = %v, want %v", upper, tc.wantUpper)
			}
		})
	}
}

func TestBoostExplanation_NoReading(t *testing.T) {
	got := BoostExplanation(nil, 0, vitals.DefaultThresholds())
	if got != "Score based on symptom analysis alone - no vitals data available" {
		t.Errorf("unexpected explanation: %q", got)
	}
}

func TestBoostExplanation_NormalVitals(t *testing.T) {
	r := &vitals.Reading{HeartRate: ptrFloat(72), OxygenSaturation: ptrFloat(98)}
	got := BoostExplanation(r, 0, vitals.DefaultThresholds())
	if got != "Vital signs within normal ranges - no score adjustment" {
		t.Errorf("unexpected explanation: %q", got)
	}
}

func TestBoostExplanation_Phrases(t *testing.T) {
	th := vitals.DefaultThresholds()
	cases := []struct {
		name    string
		reading *vitals.Reading
		boost   float64
		want    string
	}{
		{
			"elevated heart rate",
			&vitals.Reading{HeartRate: ptrFloat(125)},
			1.0,
			"Vitals adjusted severity by +1.0 points: elevated heart rate",
		},
		{
			"low heart rate",
			&vitals.Reading{HeartRate: ptrFloat(45)},
			1.0,
			"Vitals adjusted severity by +1.0 points: low heart rate",
		},
		{
			"low oxygen saturation",
			&vitals.Reading{OxygenSaturation: ptrFloat(93)},
			1.5,
			"Vitals adjusted severity by +1.5 points: low oxygen saturation",
		},
		{
			"fever",
			&vitals.Reading{Temperature: ptrFloat(102.2)},
			1.0,
			"Vitals adjusted severity by +1.0 points: fever",
		},
		{
			"multiple phrases keep order",
			&vitals.Reading{HeartRate: ptrFloat(130), OxygenSaturation: ptrFloat(92), Temperature: ptrFloat(102.5)},
			3.5,
			"Vitals adjusted severity by +3.5 points: elevated heart rate, low oxygen saturation, fever",
		},
		{
			"blood pressure boost gets generic phrase",
			&vitals.Reading{BloodPressure: ptrStr("190/100")},
			1.0,
			"Vitals adjusted severity by +1.0 points: abnormal vital signs",
		},
		{
			"respiratory rate boost gets generic phrase",
			&vitals.Reading{RespiratoryRate: ptrFloat(28)},
			0.5,
			"Vitals adjusted severity by +0.5 points: abnormal vital signs",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BoostExplanation(tc.reading, tc.boost, th); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// Critically low SpO2 still reads as "low oxygen saturation"; the critical
// tier changes the boost, not the phrase.
func TestBoostExplanation_CriticalSpO2Phrase(t *testing.T) {
	r := &vitals.Reading{OxygenSaturation: ptrFloat(88)}
	th := vitals.DefaultThresholds()
	boost, _ := vitals.SeverityBoost(r, th)
	if boost != 2.5 {
		t.Fatalf("boost = %v, want 2.5", boost)
	}
	got := BoostExplanation(r, boost, th)
	if got != "Vitals adjusted severity by +2.5 points: low oxygen saturation" {
		t.Errorf("unexpected explanation: %q", got)
	}
}
