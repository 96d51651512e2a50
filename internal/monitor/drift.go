package monitor

import (
	"math"
	"sort"
)

const driftEpsilon = 1e-8

// FeatureDrift compares one feature between a reference and current window.
type FeatureDrift struct {
	Feature       string  `json:"feature"`
	Score         float64 `json:"drift_score"`
	ReferenceMean float64 `json:"reference_mean"`
	CurrentMean   float64 `json:"current_mean"`
	Detected      bool    `json:"drift_detected"`
}

// DriftReport summarises feature drift across the vector.
type DriftReport struct {
	Detected          bool           `json:"overall_drift_detected"`
	MaxScore          float64        `json:"max_drift_score"`
	Threshold         float64        `json:"drift_threshold"`
	FeaturesWithDrift []string       `json:"features_with_drift"`
	Features          []FeatureDrift `json:"feature_drift"`
}

// DetectDrift scores each feature present in both windows as the larger of the
// standardised mean shift and the relative spread change.
func DetectDrift(reference, current []map[string]float64, threshold float64) DriftReport {
	report := DriftReport{Threshold: threshold, FeaturesWithDrift: []string{}}
	if len(reference) == 0 || len(current) == 0 {
		return report
	}

	names := make(map[string]struct{})
	for _, row := range reference {
		for name := range row {
			names[name] = struct{}{}
		}
	}

	for name := range names {
		refValues, ok := column(reference, name)
		if !ok {
			continue
		}
		curValues, ok := column(current, name)
		if !ok {
			continue
		}
		refMean, refStd := meanStd(refValues)
		curMean, curStd := meanStd(curValues)

		meanShift := math.Abs(refMean-curMean) / (refStd + driftEpsilon)
		stdShift := math.Abs(refStd-curStd) / (refStd + driftEpsilon)
		score := math.Max(meanShift, stdShift)

		fd := FeatureDrift{
			Feature:       name,
			Score:         score,
			ReferenceMean: refMean,
			CurrentMean:   curMean,
			Detected:      score > threshold,
		}
		report.Features = append(report.Features, fd)
		report.MaxScore = math.Max(report.MaxScore, score)
		if fd.Detected {
			report.Detected = true
			report.FeaturesWithDrift = append(report.FeaturesWithDrift, name)
		}
	}

	sort.Slice(report.Features, func(i, j int) bool {
		return report.Features[i].Feature < report.Features[j].Feature
	})
	sort.Strings(report.FeaturesWithDrift)
	return report
}

func column(rows []map[string]float64, name string) ([]float64, bool) {
	out := make([]float64, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[name]; ok {
			out = append(out, v)
		}
	}
	return out, len(out) > 0
}

// meanStd returns the mean and sample standard deviation.
func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}
