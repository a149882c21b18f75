package vitals

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reading maps to the vitals_reading table. One sample of device or
// app-reported vital signs for a patient. Every measurement is optional;
// devices rarely report the full set in a single sample.
type Reading struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	PatientID            uuid.UUID `db:"patient_id" json:"patient_id"`
	HeartRate            *float64  `db:"heart_rate" json:"heart_rate,omitempty"`
	BloodPressure        *string   `db:"blood_pressure" json:"blood_pressure,omitempty"`
	OxygenSaturation     *float64  `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	Temperature          *float64  `db:"temperature" json:"temperature,omitempty"`
	RespiratoryRate      *float64  `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	HeartRateVariability *float64  `db:"heart_rate_variability" json:"heart_rate_variability,omitempty"`
	Source               *string   `db:"source" json:"source,omitempty"`
	Quality              *float64  `db:"quality" json:"quality,omitempty"`
	TakenAt              time.Time `db:"taken_at" json:"taken_at"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// HasAnyVital reports whether at least one measurement is present.
func (r *Reading) HasAnyVital() bool {
	return r.HeartRate != nil || r.BloodPressure != nil || r.OxygenSaturation != nil ||
		r.Temperature != nil || r.RespiratoryRate != nil || r.HeartRateVariability != nil
}

// BloodPressurePair parses the reading's raw blood pressure string.
// Readings without a parsable pair contribute no blood pressure data.
func (r *Reading) BloodPressurePair() (sys, dia int, ok bool) {
	if r.BloodPressure == nil {
		return 0, 0, false
	}
	return ParseBloodPressure(*r.BloodPressure)
}

// ParseBloodPressure extracts the systolic/diastolic pair from a
// "120/80"-style string. Anything that is not two integers separated by
// a slash returns ok=false; malformed values are excluded silently rather
// than rejected, since they come from devices we do not control.
func ParseBloodPressure(s string) (sys, dia int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	sys, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	dia, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return sys, dia, true
}

// TrendDirection classifies the slope of a vital sign over time.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// StabilityLevel grades how many core vital signs are moving at once.
type StabilityLevel string

const (
	StabilityStable         StabilityLevel = "stable"
	StabilityMildlyUnstable StabilityLevel = "mildly_unstable"
	StabilityConcerning     StabilityLevel = "concerning"
	StabilityUnstable       StabilityLevel = "unstable"
	StabilityUnknown        StabilityLevel = "unknown"
)

// DeteriorationRisk grades the likelihood of clinical deterioration.
type DeteriorationRisk string

const (
	RiskMinimal  DeteriorationRisk = "minimal"
	RiskLow      DeteriorationRisk = "low"
	RiskModerate DeteriorationRisk = "moderate"
	RiskHigh     DeteriorationRisk = "high"
	RiskUnknown  DeteriorationRisk = "unknown"
)

// Signal keys used in TrendReport.Signals.
const (
	SignalHeartRate        = "heart_rate"
	SignalSystolicBP       = "systolic_bp"
	SignalDiastolicBP      = "diastolic_bp"
	SignalOxygenSaturation = "oxygen_saturation"
	SignalTemperature      = "temperature"
	SignalRespiratoryRate  = "respiratory_rate"
)

// SignalTrend is the regression result for a single vital sign.
type SignalTrend struct {
	Direction TrendDirection `json:"direction"`
	Slope     float64        `json:"slope"`
	First     float64        `json:"first"`
	Last      float64        `json:"last"`
	Delta     float64        `json:"delta"`
	Points    int            `json:"points"`
}

// TrendReport is the full trend analysis for a patient over a window.
type TrendReport struct {
	PatientID       uuid.UUID              `json:"patient_id"`
	Window          time.Duration          `json:"-"`
	WindowHours     float64                `json:"window_hours"`
	ReadingCount    int                    `json:"reading_count"`
	Signals         map[string]SignalTrend `json:"signals"`
	Stability       StabilityLevel         `json:"stability"`
	Risk            DeteriorationRisk      `json:"deterioration_risk"`
	Recommendations []string               `json:"recommendations"`
	GeneratedAt     time.Time              `json:"generated_at"`
}
