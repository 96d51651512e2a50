package models

import "time"

// Sex enumerates the demographic sex values accepted on a learner signal.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
	SexOther  Sex = "Other"
)

// LearnerSignal is the structured record scored by the prediction pipeline.
type LearnerSignal struct {
	Demographic   Demographic   `json:"demographic"`
	Behavioral    Behavioral    `json:"behavioral"`
	Interaction   Interaction   `json:"interaction"`
	ScreenMedia   ScreenMedia   `json:"screen_media"`
	Questionnaire Questionnaire `json:"questionnaire"`
	Contextual    Contextual    `json:"contextual"`
	Consent       Consent       `json:"consent"`
}

// Demographic holds learner demographics used for features and subgroup lookup.
type Demographic struct {
	Age             int    `json:"age"`
	Sex             Sex    `json:"sex"`
	PrimaryLanguage string `json:"primary_language"`
}

// Behavioral captures observed on-task behaviour for a session.
type Behavioral struct {
	OnTaskRatio         float64 `json:"on_task_ratio"`
	FidgetEvents        float64 `json:"fidget_events"`
	AttentionShiftCount float64 `json:"attention_shift_count"`
	TimeOnTaskSeconds   float64 `json:"time_on_task_seconds"`
}

// Interaction captures input-device activity and answer quality.
type Interaction struct {
	Clicks            float64 `json:"clicks"`
	Scrolls           float64 `json:"scrolls"`
	ResponseLatencyMs float64 `json:"response_latency_ms"`
	AccuracyPct       float64 `json:"accuracy_pct"`
}

// ScreenMedia captures how much of the offered media was consumed.
type ScreenMedia struct {
	VideoWatchPct float64 `json:"video_watch_pct"`
	AudioPlayPct  float64 `json:"audio_play_pct"`
}

// Questionnaire holds self-reported rating scale results.
type Questionnaire struct {
	InattentionScore   float64 `json:"inattention_score"`
	HyperactivityScore float64 `json:"hyperactivity_score"`
	ScaleName          string  `json:"scale_name"`
}

// Contextual describes when and where the session happened.
type Contextual struct {
	SessionTimeOfDay string `json:"session_time_of_day"`
	DeviceType       string `json:"device_type"`
	// SessionStartedAt is optional; when zero the scoring clock supplies the hour.
	SessionStartedAt time.Time `json:"session_started_at,omitzero"`
}

// Consent records whether the learner (or guardian) allowed processing.
type Consent struct {
	ConsentGiven bool      `json:"consent_given"`
	ConsentDate  time.Time `json:"consent_date,omitzero"`
}

// Validate checks the declared ranges of a signal. Scoring itself never fails;
// boundary layers call Validate before handing a signal to the pipeline.
func (s LearnerSignal) Validate() []string {
	var problems []string
	check := func(name string, value, min, max float64) {
		if value < min || value > max || value != value {
			problems = append(problems, name)
		}
	}
	if s.Demographic.Age < 0 {
		problems = append(problems, "demographic.age")
	}
	switch s.Demographic.Sex {
	case "", SexMale, SexFemale, SexOther:
	default:
		problems = append(problems, "demographic.sex")
	}
	check("behavioral.on_task_ratio", s.Behavioral.OnTaskRatio, 0, 1)
	check("behavioral.fidget_events", s.Behavioral.FidgetEvents, 0, maxCount)
	check("behavioral.attention_shift_count", s.Behavioral.AttentionShiftCount, 0, maxCount)
	check("behavioral.time_on_task_seconds", s.Behavioral.TimeOnTaskSeconds, 0, maxCount)
	check("interaction.clicks", s.Interaction.Clicks, 0, maxCount)
	check("interaction.scrolls", s.Interaction.Scrolls, 0, maxCount)
	check("interaction.response_latency_ms", s.Interaction.ResponseLatencyMs, 0, maxCount)
	check("interaction.accuracy_pct", s.Interaction.AccuracyPct, 0, 100)
	check("screen_media.video_watch_pct", s.ScreenMedia.VideoWatchPct, 0, 1)
	check("screen_media.audio_play_pct", s.ScreenMedia.AudioPlayPct, 0, 1)
	check("questionnaire.inattention_score", s.Questionnaire.InattentionScore, 0, maxQuestionnaireScore)
	check("questionnaire.hyperactivity_score", s.Questionnaire.HyperactivityScore, 0, maxQuestionnaireScore)
	return problems
}

const (
	maxCount              = 1e9
	maxQuestionnaireScore = 27
)
