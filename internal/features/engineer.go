package features

import (
	"math"

	"github.com/miradorstack/learnsense/internal/models"
)

// Feature names emitted by the Engineer, in emission order.
const (
	Age                  = "age"
	IsMale               = "is_male"
	EnglishPrimary       = "english_primary"
	OnTaskRatio          = "on_task_ratio"
	FidgetEvents         = "fidget_events"
	AttentionShiftCount  = "attention_shift_count"
	TimeOnTaskSeconds    = "time_on_task_seconds"
	Clicks               = "clicks"
	Scrolls              = "scrolls"
	ResponseLatencyMs    = "response_latency_ms"
	AccuracyPct          = "accuracy_pct"
	VideoWatchPct        = "video_watch_pct"
	AudioPlayPct         = "audio_play_pct"
	InattentionScore     = "inattention_score"
	HyperactivityScore   = "hyperactivity_score"
	ADHDComposite        = "adhd_composite"
	AttentionEfficiency  = "attention_efficiency"
	FidgetRate           = "fidget_rate"
	InteractionIntensity = "interaction_intensity"
	MorningSession       = "morning_session"
	MobileDevice         = "mobile_device"
)

// Names lists every engineered feature in emission order.
var Names = []string{
	Age, IsMale, EnglishPrimary,
	OnTaskRatio, FidgetEvents, AttentionShiftCount, TimeOnTaskSeconds,
	Clicks, Scrolls, ResponseLatencyMs, AccuracyPct,
	VideoWatchPct, AudioPlayPct,
	InattentionScore, HyperactivityScore, ADHDComposite,
	AttentionEfficiency, FidgetRate, InteractionIntensity,
	MorningSession, MobileDevice,
}

// Feature is one named numeric input to the scorer.
type Feature struct {
	Name  string
	Value float64
}

// Vector is an ordered feature map. Order is significant for explanation tie-breaks.
type Vector []Feature

// Get returns the value of name, or 0 when the feature is absent.
func (v Vector) Get(name string) float64 {
	for _, f := range v {
		if f.Name == name {
			return f.Value
		}
	}
	return 0
}

// Map flattens the vector for serialisation and drift analysis.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, len(v))
	for _, f := range v {
		out[f.Name] = f.Value
	}
	return out
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// Engineer derives the scorer's feature vector from a learner signal.
type Engineer struct{}

// NewEngineer creates a feature engineer.
func NewEngineer() *Engineer {
	return &Engineer{}
}

// Engineer maps a signal into raw pass-through and derived features. The "+1"
// denominators smooth short sessions and must stay as they are for score parity.
func (e *Engineer) Engineer(signal models.LearnerSignal) Vector {
	b := signal.Behavioral
	in := signal.Interaction
	q := signal.Questionnaire

	minutes := b.TimeOnTaskSeconds/60 + 1

	vec := Vector{
		{Age, float64(signal.Demographic.Age)},
		{IsMale, boolValue(signal.Demographic.Sex == models.SexMale)},
		{EnglishPrimary, boolValue(signal.Demographic.PrimaryLanguage == "English")},
		{OnTaskRatio, b.OnTaskRatio},
		{FidgetEvents, b.FidgetEvents},
		{AttentionShiftCount, b.AttentionShiftCount},
		{TimeOnTaskSeconds, b.TimeOnTaskSeconds},
		{Clicks, in.Clicks},
		{Scrolls, in.Scrolls},
		{ResponseLatencyMs, in.ResponseLatencyMs},
		{AccuracyPct, in.AccuracyPct},
		{VideoWatchPct, signal.ScreenMedia.VideoWatchPct},
		{AudioPlayPct, signal.ScreenMedia.AudioPlayPct},
		{InattentionScore, q.InattentionScore},
		{HyperactivityScore, q.HyperactivityScore},
		{ADHDComposite, (q.InattentionScore + q.HyperactivityScore) / 2},
		{AttentionEfficiency, b.OnTaskRatio / (b.AttentionShiftCount + 1)},
		{FidgetRate, b.FidgetEvents / minutes},
		{InteractionIntensity, (in.Clicks + in.Scrolls) / minutes},
		{MorningSession, boolValue(isMorning(signal.Contextual.SessionTimeOfDay))},
		{MobileDevice, boolValue(signal.Contextual.DeviceType == "mobile")},
	}

	for i := range vec {
		vec[i].Value = finite(vec[i].Value)
	}
	return vec
}

func isMorning(timeOfDay string) bool {
	return timeOfDay == "morning" || timeOfDay == "early_morning"
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// finite replaces NaN and infinities with 0 so undefined inputs never poison a score.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
