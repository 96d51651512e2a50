// Package report renders decision records into the human-readable screening
// report returned alongside every prediction.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/miradorstack/learnsense/internal/models"
)

// ClinicalDisclaimer must accompany every report verbatim.
const ClinicalDisclaimer = "⚠️ IMPORTANT: This is a screening tool, not a diagnostic instrument. " +
	"ADHD can only be diagnosed by qualified healthcare professionals. " +
	"If elevated probability is indicated, please consult with a healthcare provider " +
	"for proper evaluation and support."

// PrivacyNote states the consented purpose of the data.
const PrivacyNote = "Data used with explicit consent for educational support purposes only"

const (
	trendWindow    = 5
	trendThreshold = 0.05
)

// Factor is one contributing feature in plain language.
type Factor struct {
	Factor       string  `json:"factor"`
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
	Impact       string  `json:"impact"`
}

// LessonRecommendation describes the lesson format tied to an action.
type LessonRecommendation struct {
	Format    string   `json:"format"`
	Rationale string   `json:"rationale"`
	Features  []string `json:"features"`
}

// TrendAnalysis summarises how a learner's probability moved across sessions.
type TrendAnalysis struct {
	Direction        string  `json:"direction"`
	Change           float64 `json:"change"`
	SessionsAnalyzed int     `json:"sessions_analyzed"`
}

// Report is the human-readable companion of a decision record.
type Report struct {
	LearnerID             string               `json:"learner_id"`
	Timestamp             time.Time            `json:"timestamp"`
	ADHDProbability       float64              `json:"adhd_probability"`
	Confidence            float64              `json:"confidence"`
	Uncertainty           float64              `json:"uncertainty"`
	RecommendedAction     models.Action        `json:"recommended_action"`
	ModelVersion          string               `json:"model_version"`
	ContributingFactors   []Factor             `json:"contributing_factors"`
	TrendAnalysis         *TrendAnalysis       `json:"trend_analysis,omitempty"`
	LessonRecommendations LessonRecommendation `json:"lesson_recommendations"`
	Rationale             string               `json:"rationale"`
	ClinicalDisclaimer    string               `json:"clinical_disclaimer"`
	PrivacyNote           string               `json:"privacy_note"`
}

var featureLabels = map[string]string{
	"on_task_ratio":         "Time spent focused on learning tasks",
	"fidget_events":         "Physical restlessness indicators",
	"attention_shift_count": "Number of attention breaks",
	"inattention_score":     "Self-reported attention difficulties",
	"hyperactivity_score":   "Self-reported hyperactivity levels",
	"response_latency_ms":   "Time to respond to questions",
	"video_watch_pct":       "Preference for visual learning",
	"audio_play_pct":        "Preference for audio learning",
}

var lessonRecommendations = map[models.Action]LessonRecommendation{
	models.ActionVisualAndSpeech: {
		Format:    "Visual + Audio lessons",
		Rationale: "High visual and audio support recommended for optimal learning",
		Features: []string{
			"Animated diagrams and step-by-step visuals",
			"Audio narration for key concepts",
			"Interactive micro-tasks (2-5 minutes)",
			"Scheduled breaks and progress indicators",
			"Minimal distractions, large fonts",
		},
	},
	models.ActionText: {
		Format:    "Structured text lessons",
		Rationale: "Text-based learning format is optimal",
		Features: []string{
			"Clear headings and structure",
			"Example boxes and inline quizzes",
			"Progressive difficulty levels",
			"Optional visual supplements",
		},
	},
	models.ActionManualReview: {
		Format:    "Human review recommended",
		Rationale: "Mixed indicators suggest professional evaluation",
		Features: []string{
			"Flag for educator/clinician review",
			"Provide detailed behavioral data",
			"Recommend formal assessment",
			"Monitor learning patterns closely",
		},
	},
	models.ActionRecommendEvaluation: {
		Format:    "Professional evaluation recommended",
		Rationale: "Screening indicators warrant a formal evaluation by a qualified professional",
		Features: []string{
			"Share screening summary with guardians",
			"Refer to a qualified healthcare provider",
			"Continue current lesson format until evaluated",
		},
	},
}

// Build renders rec. history holds the learner's earlier probabilities,
// oldest first; the current decision is appended before trend analysis.
func Build(rec models.DecisionRecord, history []float64) Report {
	factors := make([]Factor, 0, len(rec.TopFeatures))
	for _, f := range rec.TopFeatures {
		impact := "negative"
		if f.Contribution > 0 {
			impact = "positive"
		}
		factors = append(factors, Factor{
			Factor:       Label(f.Feature),
			Feature:      f.Feature,
			Contribution: f.Contribution,
			Impact:       impact,
		})
	}

	probs := append(append([]float64(nil), history...), rec.ADHDProbability)

	return Report{
		LearnerID:             rec.LearnerID,
		Timestamp:             rec.Timestamp,
		ADHDProbability:       rec.ADHDProbability,
		Confidence:            rec.CalibratedConfidence,
		Uncertainty:           rec.EpistemicUncertainty,
		RecommendedAction:     rec.RecommendedAction,
		ModelVersion:          rec.ModelVersion,
		ContributingFactors:   factors,
		TrendAnalysis:         AnalyzeTrend(probs),
		LessonRecommendations: RecommendationFor(rec.RecommendedAction),
		Rationale:             Rationale(rec.RecommendedAction, rec.ADHDProbability, rec.CalibratedConfidence),
		ClinicalDisclaimer:    ClinicalDisclaimer,
		PrivacyNote:           PrivacyNote,
	}
}

// Label returns the plain-language name of a feature.
func Label(feature string) string {
	if label, ok := featureLabels[feature]; ok {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(feature, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// RecommendationFor returns the lesson recommendation for action, falling back
// to manual review for unknown actions.
func RecommendationFor(action models.Action) LessonRecommendation {
	rec, ok := lessonRecommendations[action]
	if !ok {
		rec = lessonRecommendations[models.ActionManualReview]
	}
	rec.Features = append([]string(nil), rec.Features...)
	return rec
}

// Rationale explains the routed action in one or two sentences.
func Rationale(action models.Action, probability, confidence float64) string {
	p, c := percent(probability), percent(confidence)
	switch action {
	case models.ActionVisualAndSpeech:
		return fmt.Sprintf("High ADHD probability (%s) with strong confidence (%s) indicates visual and audio learning support will be most effective. "+
			"This format provides the structure and engagement needed for optimal learning.", p, c)
	case models.ActionText:
		return fmt.Sprintf("Low ADHD probability (%s) suggests standard text-based learning will be appropriate. "+
			"This format allows for self-paced, structured learning.", p)
	case models.ActionRecommendEvaluation:
		return fmt.Sprintf("Screening indicators (probability: %s, confidence: %s) suggest a formal evaluation by a qualified professional.", p, c)
	default:
		return fmt.Sprintf("Mixed indicators (probability: %s, confidence: %s) suggest professional review is needed to determine the most effective learning approach.", p, c)
	}
}

// AnalyzeTrend reports the mean successive change over the last five
// probabilities. It returns nil with fewer than two values.
func AnalyzeTrend(probs []float64) *TrendAnalysis {
	if len(probs) > trendWindow {
		probs = probs[len(probs)-trendWindow:]
	}
	if len(probs) < 2 {
		return nil
	}
	var sum float64
	for i := 1; i < len(probs); i++ {
		sum += probs[i] - probs[i-1]
	}
	change := sum / float64(len(probs)-1)

	direction := "stable"
	switch {
	case change > trendThreshold:
		direction = "increasing"
	case change < -trendThreshold:
		direction = "decreasing"
	}
	return &TrendAnalysis{Direction: direction, Change: change, SessionsAnalyzed: len(probs)}
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
