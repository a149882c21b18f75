package vitals

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the clinical cutoffs and score increments applied when
// a vitals reading adjusts a symptom-based severity score. Deployments
// override individual values with a YAML file; keys absent from the file
// keep their defaults.
type Thresholds struct {
	HighHeartRate      float64 `yaml:"high_heart_rate"`
	LowHeartRate       float64 `yaml:"low_heart_rate"`
	HeartRateBoost     float64 `yaml:"heart_rate_boost"`
	LowSpO2            float64 `yaml:"low_spo2"`
	CriticalSpO2       float64 `yaml:"critical_spo2"`
	LowSpO2Boost       float64 `yaml:"low_spo2_boost"`
	CriticalSpO2Boost  float64 `yaml:"critical_spo2_boost"`
	FeverTemp          float64 `yaml:"fever_temp"`
	HighFeverTemp      float64 `yaml:"high_fever_temp"`
	FeverBoost         float64 `yaml:"fever_boost"`
	HighFeverBoost     float64 `yaml:"high_fever_boost"`
	HighSystolic       float64 `yaml:"high_systolic"`
	LowSystolic        float64 `yaml:"low_systolic"`
	BloodPressureBoost float64 `yaml:"blood_pressure_boost"`
	HighRespRate       float64 `yaml:"high_resp_rate"`
	LowRespRate        float64 `yaml:"low_resp_rate"`
	RespRateBoost      float64 `yaml:"resp_rate_boost"`
}

// DefaultThresholds returns the standard adult cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighHeartRate:      120,
		LowHeartRate:       50,
		HeartRateBoost:     1.0,
		LowSpO2:            95,
		CriticalSpO2:       90,
		LowSpO2Boost:       1.5,
		CriticalSpO2Boost:  2.5,
		FeverTemp:          101.5,
		HighFeverTemp:      103,
		FeverBoost:         1.0,
		HighFeverBoost:     1.5,
		HighSystolic:       180,
		LowSystolic:        90,
		BloodPressureBoost: 1.0,
		HighRespRate:       24,
		LowRespRate:        10,
		RespRateBoost:      0.5,
	}
}

// LoadThresholds reads threshold overrides from a YAML file on top of the
// defaults. The defaults are returned alongside any error so callers can
// fall back without a second call.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("read thresholds file: %w", err)
	}
	if err := yaml.Unmarshal(data, &th); err != nil {
		return th, fmt.Errorf("parse thresholds file: %w", err)
	}
	return th, nil
}

// SeverityBoost computes the score adjustment one vitals reading adds to a
// symptom-based severity score, plus the abnormal findings that drove it.
// Tiers replace rather than stack: an SpO2 under the critical cutoff gets
// the critical increment only. A nil reading contributes nothing.
func SeverityBoost(r *Reading, th Thresholds) (float64, []string) {
	if r == nil {
		return 0, nil
	}

	var boost float64
	var findings []string

	if r.HeartRate != nil {
		switch {
		case *r.HeartRate > th.HighHeartRate:
			boost += th.HeartRateBoost
			findings = append(findings, "elevated heart rate")
		case *r.HeartRate < th.LowHeartRate:
			boost += th.HeartRateBoost
			findings = append(findings, "low heart rate")
		}
	}
	if r.OxygenSaturation != nil {
		switch {
		case *r.OxygenSaturation < th.CriticalSpO2:
			boost += th.CriticalSpO2Boost
			findings = append(findings, "critically low oxygen saturation")
		case *r.OxygenSaturation < th.LowSpO2:
			boost += th.LowSpO2Boost
			findings = append(findings, "low oxygen saturation")
		}
	}
	if r.Temperature != nil {
		switch {
		case *r.Temperature > th.HighFeverTemp:
			boost += th.HighFeverBoost
			findings = append(findings, "high fever")
		case *r.Temperature > th.FeverTemp:
			boost += th.FeverBoost
			findings = append(findings, "fever")
		}
	}
	if sys, _, ok := r.BloodPressurePair(); ok {
		switch {
		case float64(sys) > th.HighSystolic:
			boost += th.BloodPressureBoost
			findings = append(findings, "elevated blood pressure")
		case float64(sys) < th.LowSystolic:
			boost += th.BloodPressureBoost
			findings = append(findings, "low blood pressure")
		}
	}
	if r.RespiratoryRate != nil {
		if *r.RespiratoryRate > th.HighRespRate || *r.RespiratoryRate < th.LowRespRate {
			boost += th.RespRateBoost
			findings = append(findings, "abnormal respiratory rate")
		}
	}

	return boost, findings
}
