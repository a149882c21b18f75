package vitals

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultWindow is the history window used when the caller does not
// specify one.
const DefaultWindow = 24 * time.Hour

// trendSensitivity scales the per-signal noise floor. The significance
// threshold for a slope is the population standard deviation of the
// signal's values multiplied by this factor, so noisy signals need a
// steeper slope before they count as moving.
const trendSensitivity = 0.1

// Deterioration risk factor cutoffs.
const (
	tachycardiaCutoff = 100.0 // bpm, rising heart rate above this is a risk factor
	hypoxiaCutoff     = 96.0  // percent, falling SpO2 below this is a risk factor
	feverCutoff       = 100.4 // °F, rising temperature above this is a risk factor
	rapidHRDelta      = 20.0  // bpm swing across the most recent readings
	rapidSpO2Delta    = 3.0   // percent swing across the most recent readings
)

const insufficientDataAdvice = "Insufficient data for trend analysis - continue monitoring"

var stabilityAdvice = map[StabilityLevel]string{
	StabilityStable:         "Vital signs are stable - continue current monitoring",
	StabilityMildlyUnstable: "Some vital sign changes observed - increase monitoring frequency",
	StabilityConcerning:     "Multiple vital signs showing changes - consider clinical assessment",
	StabilityUnstable:       "Significant vital sign instability - recommend immediate clinical evaluation",
	StabilityUnknown:        "Insufficient data for stability assessment - continue data collection",
}

var riskAdvice = map[DeteriorationRisk]string{
	RiskMinimal:  "Low risk of deterioration - routine monitoring appropriate",
	RiskLow:      "Mild deterioration risk - monitor for symptom changes",
	RiskModerate: "Moderate deterioration risk - consider increased monitoring or medical consultation",
	RiskHigh:     "High deterioration risk - seek immediate medical attention",
	RiskUnknown:  "Unable to assess deterioration risk - ensure adequate vital signs monitoring",
}

// Analyzer computes trend reports from vitals history. The time source is
// injectable so window filtering is reproducible in tests.
type Analyzer struct {
	now func() time.Time
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{now: time.Now}
}

// WithClock replaces the analyzer's time source and returns the analyzer.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Analyze produces a TrendReport for the given readings. Readings outside
// [now-window, now] are ignored. Fewer than two in-window readings yields
// the insufficient-data report: empty signals, unknown stability and risk,
// and a single recommendation. The same inputs with the same clock always
// produce the same report.
func (a *Analyzer) Analyze(patientID uuid.UUID, readings []*Reading, window time.Duration) *TrendReport {
	if window <= 0 {
		window = DefaultWindow
	}
	now := a.now()
	cutoff := now.Add(-window)

	recent := make([]*Reading, 0, len(readings))
	for _, r := range readings {
		if r == nil {
			continue
		}
		if r.TakenAt.Before(cutoff) || r.TakenAt.After(now) {
			continue
		}
		recent = append(recent, r)
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].TakenAt.Before(recent[j].TakenAt) })

	report := &TrendReport{
		PatientID:   patientID,
		Window:      window,
		WindowHours: window.Hours(),
		Signals:     map[string]SignalTrend{},
		GeneratedAt: now,
	}

	// ReadingCount is the number of data points the analysis used; the
	// insufficient-data sentinel uses none, so it stays zero there even
	// when a single in-window reading exists.
	if len(recent) < 2 {
		report.Stability = StabilityUnknown
		report.Risk = RiskUnknown
		report.Recommendations = []string{insufficientDataAdvice}
		return report
	}
	report.ReadingCount = len(recent)

	for _, sig := range signalExtractors {
		values := collectSamples(recent, sig.pick)
		if len(values) < 2 {
			continue
		}
		report.Signals[sig.key] = fitTrend(values)
	}

	report.Stability = stabilityFor(len(recent), report.Signals)
	report.Risk = riskFor(recent, report.Signals)
	report.Recommendations = []string{
		stabilityAdvice[report.Stability],
		riskAdvice[report.Risk],
	}
	return report
}

// ---- series extraction ----

var signalExtractors = []struct {
	key  string
	pick func(*Reading) (float64, bool)
}{
	{SignalHeartRate, func(r *Reading) (float64, bool) {
		if r.HeartRate == nil {
			return 0, false
		}
		return *r.HeartRate, true
	}},
	{SignalSystolicBP, func(r *Reading) (float64, bool) {
		sys, _, ok := r.BloodPressurePair()
		return float64(sys), ok
	}},
	{SignalDiastolicBP, func(r *Reading) (float64, bool) {
		_, dia, ok := r.BloodPressurePair()
		return float64(dia), ok
	}},
	{SignalOxygenSaturation, func(r *Reading) (float64, bool) {
		if r.OxygenSaturation == nil {
			return 0, false
		}
		return *r.OxygenSaturation, true
	}},
	{SignalTemperature, func(r *Reading) (float64, bool) {
		if r.Temperature == nil {
			return 0, false
		}
		return *r.Temperature, true
	}},
	{SignalRespiratoryRate, func(r *Reading) (float64, bool) {
		if r.RespiratoryRate == nil {
			return 0, false
		}
		return *r.RespiratoryRate, true
	}},
}

// collectSamples gathers the signal's non-null values in reading order.
func collectSamples(recent []*Reading, pick func(*Reading) (float64, bool)) []float64 {
	var values []float64
	for _, r := range recent {
		if v, ok := pick(r); ok {
			values = append(values, v)
		}
	}
	return values
}

// ---- regression ----

// fitTrend runs an ordinary least squares fit with the sample index as the
// independent variable, so the slope is in signal units per reading step.
// The slope is classified against a data-adaptive threshold: one tenth of
// the population standard deviation of the values. A flat series has zero
// deviation and a zero slope, which classifies as stable; a degenerate
// denominator also classifies as stable instead of dividing by zero.
func fitTrend(values []float64) SignalTrend {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	var slope float64
	if denom := n*sumXX - sumX*sumX; denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}

	mean := sumY / n
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n
	threshold := math.Sqrt(variance) * trendSensitivity

	direction := TrendStable
	switch {
	case slope > threshold:
		direction = TrendIncreasing
	case slope < -threshold:
		direction = TrendDecreasing
	}

	first := values[0]
	last := values[len(values)-1]
	return SignalTrend{
		Direction: direction,
		Slope:     slope,
		First:     first,
		Last:      last,
		Delta:     last - first,
		Points:    len(values),
	}
}

// ---- stability ----

// stabilityFor counts instability votes over the four core signals: heart
// rate, blood pressure (systolic or diastolic moving counts once),
// oxygen saturation, and temperature. The ratio is always over four votes;
// a signal with no data simply cannot vote.
func stabilityFor(readingCount int, signals map[string]SignalTrend) StabilityLevel {
	if readingCount < 3 {
		return StabilityUnknown
	}

	votes := 0
	if t, ok := signals[SignalHeartRate]; ok && t.Direction != TrendStable {
		votes++
	}
	bpMoving := false
	if t, ok := signals[SignalSystolicBP]; ok && t.Direction != TrendStable {
		bpMoving = true
	}
	if t, ok := signals[SignalDiastolicBP]; ok && t.Direction != TrendStable {
		bpMoving = true
	}
	if bpMoving {
		votes++
	}
	if t, ok := signals[SignalOxygenSaturation]; ok && t.Direction != TrendStable {
		votes++
	}
	if t, ok := signals[SignalTemperature]; ok && t.Direction != TrendStable {
		votes++
	}

	ratio := float64(votes) / 4.0
	switch {
	case ratio >= 0.75:
		return StabilityUnstable
	case ratio >= 0.50:
		return StabilityConcerning
	case ratio >= 0.25:
		return StabilityMildlyUnstable
	default:
		return StabilityStable
	}
}

// ---- deterioration risk ----

// riskFor counts independent risk factors: rising heart rate into
// tachycardia, falling oxygen saturation into hypoxia, rising temperature
// into fever, and a rapid swing across the most recent readings. Three or
// more factors grade high, two moderate, one low, none minimal.
func riskFor(recent []*Reading, signals map[string]SignalTrend) DeteriorationRisk {
	if len(recent) < 2 {
		return RiskUnknown
	}

	factors := 0
	if t, ok := signals[SignalHeartRate]; ok && t.Direction == TrendIncreasing && t.Last > tachycardiaCutoff {
		factors++
	}
	if t, ok := signals[SignalOxygenSaturation]; ok && t.Direction == TrendDecreasing && t.Last < hypoxiaCutoff {
		factors++
	}
	if t, ok := signals[SignalTemperature]; ok && t.Direction == TrendIncreasing && t.Last > feverCutoff {
		factors++
	}
	if rapidChange(recent) {
		factors++
	}

	switch {
	case factors >= 3:
		return RiskHigh
	case factors == 2:
		return RiskModerate
	case factors == 1:
		return RiskLow
	default:
		return RiskMinimal
	}
}

// rapidChange looks at the last three readings (or two, when only two
// exist) and reports whether heart rate swung more than 20 bpm or oxygen
// saturation more than 3 percentage points between the first and last
// value present in that tail.
func rapidChange(recent []*Reading) bool {
	tail := recent
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	if delta, ok := tailDelta(tail, func(r *Reading) *float64 { return r.HeartRate }); ok && math.Abs(delta) > rapidHRDelta {
		return true
	}
	if delta, ok := tailDelta(tail, func(r *Reading) *float64 { return r.OxygenSaturation }); ok && math.Abs(delta) > rapidSpO2Delta {
		return true
	}
	return false
}

func tailDelta(tail []*Reading, pick func(*Reading) *float64) (float64, bool) {
	var first, last *float64
	for _, r := range tail {
		if v := pick(r); v != nil {
			if first == nil {
				first = v
			}
			last = v
		}
	}
	if first == nil || last == nil || first == last {
		return 0, false
	}
	return *last - *first, true
}
