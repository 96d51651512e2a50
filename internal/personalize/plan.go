// Package personalize turns a routed decision into a concrete lesson plan.
package personalize

import (
	"time"

	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/realtime"
	"github.com/miradorstack/learnsense/internal/report"
)

// Profile is the learner context a plan is tailored to.
type Profile struct {
	Age             int    `json:"age"`
	DeviceType      string `json:"device_type"`
	PrimaryLanguage string `json:"primary_language"`
}

// ProfileFrom extracts the plan profile from a learner signal.
func ProfileFrom(signal models.LearnerSignal) Profile {
	return Profile{
		Age:             signal.Demographic.Age,
		DeviceType:      signal.Contextual.DeviceType,
		PrimaryLanguage: signal.Demographic.PrimaryLanguage,
	}
}

// TaskDuration bounds a single task in minutes.
type TaskDuration struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Session is the shape of one learning session.
type Session struct {
	DurationMinutes      int          `json:"session_duration"`
	BreakIntervalMinutes int          `json:"break_interval"`
	MicroTasks           bool         `json:"micro_tasks"`
	TaskDuration         TaskDuration `json:"task_duration"`
	InteractiveElements  bool         `json:"interactive_elements"`
	ProgressTracking     bool         `json:"progress_tracking"`
	FlagForReview        bool         `json:"flag_for_review,omitempty"`
}

// Content lists recommended content and accessibility features.
type Content struct {
	PrimaryFormat         models.Action `json:"primary_format"`
	ContentTypes          []string      `json:"content_types"`
	DifficultyLevel       string        `json:"difficulty_level"`
	AccessibilityFeatures []string      `json:"accessibility_features"`
}

// UIProfile selects interface adaptations.
type UIProfile struct {
	Profile         string `json:"profile"`
	FontSize        string `json:"font_size"`
	LineSpacing     string `json:"line_spacing"`
	ColorScheme     string `json:"color_scheme"`
	SingleColumn    bool   `json:"single_column"`
	FocusMode       bool   `json:"focus_mode"`
	LargeButtons    bool   `json:"large_buttons"`
	SpeechSynthesis bool   `json:"speech_synthesis"`
}

// Monitoring names what to watch and when to alert.
type Monitoring struct {
	TrackingMetrics []string           `json:"tracking_metrics"`
	AlertThresholds map[string]float64 `json:"alert_thresholds"`
	ReviewTriggers  []string           `json:"review_triggers"`
}

// Plan is a complete lesson plan for one learner.
type Plan struct {
	LearnerID       string        `json:"learner_id"`
	DecisionID      string        `json:"decision_id"`
	Format          models.Action `json:"format_type"`
	ADHDProbability float64       `json:"adhd_probability"`
	Confidence      float64       `json:"confidence"`
	Session         Session       `json:"session_plan"`
	Content         Content       `json:"content_recommendations"`
	UI              UIProfile     `json:"ui_config"`
	Monitoring      Monitoring    `json:"monitoring_plan"`
	Rationale       string        `json:"rationale"`
	GeneratedAt     time.Time     `json:"generated_at"`
}

// Build creates the plan for a decision. The lesson format is the decision's
// routed action.
func Build(rec models.DecisionRecord, profile Profile, now time.Time) Plan {
	return Plan{
		LearnerID:       rec.LearnerID,
		DecisionID:      rec.ID,
		Format:          rec.RecommendedAction,
		ADHDProbability: rec.ADHDProbability,
		Confidence:      rec.CalibratedConfidence,
		Session:         sessionFor(rec.RecommendedAction, profile),
		Content:         contentFor(rec.RecommendedAction, profile),
		UI:              uiFor(rec.RecommendedAction, profile),
		Monitoring:      monitoringPlan(),
		Rationale:       report.Rationale(rec.RecommendedAction, rec.ADHDProbability, rec.CalibratedConfidence),
		GeneratedAt:     now.UTC(),
	}
}

func sessionFor(action models.Action, p Profile) Session {
	switch action {
	case models.ActionVisualAndSpeech:
		return Session{
			DurationMinutes:      clampInt(p.Age*2, 10, 30),
			BreakIntervalMinutes: 15,
			MicroTasks:           true,
			TaskDuration:         TaskDuration{Min: 2, Max: 5},
			InteractiveElements:  true,
			ProgressTracking:     true,
		}
	case models.ActionText:
		return Session{
			DurationMinutes:      clampInt(p.Age*3, 15, 45),
			BreakIntervalMinutes: 30,
			TaskDuration:         TaskDuration{Min: 10, Max: 20},
			ProgressTracking:     true,
		}
	default:
		return Session{
			DurationMinutes:      20,
			BreakIntervalMinutes: 10,
			MicroTasks:           true,
			TaskDuration:         TaskDuration{Min: 3, Max: 7},
			InteractiveElements:  true,
			ProgressTracking:     true,
			FlagForReview:        true,
		}
	}
}

func contentFor(action models.Action, p Profile) Content {
	c := Content{PrimaryFormat: action, DifficultyLevel: "adaptive"}
	switch action {
	case models.ActionVisualAndSpeech:
		c.ContentTypes = []string{"animated_videos", "interactive_diagrams", "step_by_step_tutorials", "audio_narrations", "visual_quizzes"}
		c.AccessibilityFeatures = []string{"screen_reader_support", "voice_commands", "large_text_options", "color_contrast_enhancement"}
	case models.ActionText:
		c.ContentTypes = []string{"structured_text", "example_boxes", "inline_quizzes", "reference_materials"}
		c.AccessibilityFeatures = []string{"text_to_speech", "bookmarking", "note_taking"}
	default:
		c.ContentTypes = []string{}
		c.AccessibilityFeatures = []string{}
	}

	switch {
	case p.Age < 12:
		c.ContentTypes = append(c.ContentTypes, "gamified_elements")
		c.DifficultyLevel = "beginner"
	case p.Age > 18:
		c.ContentTypes = append(c.ContentTypes, "advanced_concepts")
		c.DifficultyLevel = "intermediate"
	}
	return c
}

func uiFor(action models.Action, p Profile) UIProfile {
	ui := UIProfile{
		Profile:     "standard",
		FontSize:    "medium",
		LineSpacing: "normal",
		ColorScheme: "standard",
	}
	if action == models.ActionVisualAndSpeech {
		ui = UIProfile{
			Profile:      "adhd_friendly",
			FontSize:     "large",
			LineSpacing:  "1.5x",
			ColorScheme:  "high_contrast",
			SingleColumn: true,
			FocusMode:    true,
			LargeButtons: true,
		}
	}
	if p.Age < 16 {
		ui.FontSize = "large"
		ui.SingleColumn = true
	}
	if p.DeviceType == "mobile" {
		ui.FontSize = "large"
		ui.SingleColumn = true
		ui.LargeButtons = true
	}
	if p.PrimaryLanguage != "" && p.PrimaryLanguage != "English" {
		ui.SpeechSynthesis = true
	}
	return ui
}

func monitoringPlan() Monitoring {
	return Monitoring{
		TrackingMetrics: []string{
			"attention_level",
			"task_completion_rate",
			"response_accuracy",
			"session_duration",
			"break_frequency",
			"engagement_score",
		},
		AlertThresholds: map[string]float64{
			realtime.AlertLowAttention:    realtime.LowAttentionThreshold,
			realtime.AlertLowEngagement:   realtime.LowEngagementThreshold,
			realtime.AlertHighDistraction: realtime.HighDistractionThreshold,
		},
		ReviewTriggers: []string{"sustained_low_performance", "format_ineffectiveness", "behavioral_changes"},
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
