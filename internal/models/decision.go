package models

import "time"

// Action enumerates lesson-delivery routes.
type Action string

const (
	ActionVisualAndSpeech     Action = "visual_and_speech"
	ActionText                Action = "text"
	ActionManualReview        Action = "manual_review"
	ActionRecommendEvaluation Action = "recommend_evaluation"
)

// FeatureContribution explains one feature's share of the linear score.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
	Importance   float64 `json:"importance"`
}

// DecisionRecord is the immutable output of one prediction.
type DecisionRecord struct {
	ID                   string                `json:"id"`
	LearnerID            string                `json:"learner_id"`
	ADHDProbability      float64               `json:"adhd_probability"`
	CalibratedConfidence float64               `json:"calibrated_confidence"`
	EpistemicUncertainty float64               `json:"epistemic_uncertainty"`
	TopFeatures          []FeatureContribution `json:"top_features"`
	RecommendedAction    Action                `json:"recommended_action"`
	Subgroup             SubgroupKey           `json:"subgroup"`
	ModelVersion         string                `json:"model_version"`
	UncertaintyStrategy  string                `json:"uncertainty_strategy"`
	Timestamp            time.Time             `json:"timestamp"`
}

// AgeBand buckets learner age for subgroup thresholds.
type AgeBand string

const (
	AgeBandUnder8 AgeBand = "<8"
	AgeBand8To12  AgeBand = "8-12"
	AgeBand13To17 AgeBand = "13-17"
	AgeBandAdult  AgeBand = "18+"
)

// LanguageGroup splits learners by primary language.
type LanguageGroup string

const (
	LanguageEnglish    LanguageGroup = "English"
	LanguageNonEnglish LanguageGroup = "NonEnglish"
)

// SubgroupKey identifies a demographic group for threshold lookup.
type SubgroupKey struct {
	AgeBand  AgeBand       `json:"age_band" yaml:"age_band"`
	Sex      Sex           `json:"sex" yaml:"sex"`
	Language LanguageGroup `json:"language" yaml:"language"`
}

// String renders the key in a stable, log-friendly form.
func (k SubgroupKey) String() string {
	return string(k.AgeBand) + "/" + string(k.Sex) + "/" + string(k.Language)
}

// AgeBandFor maps an age in years onto its band.
func AgeBandFor(age int) AgeBand {
	switch {
	case age < 8:
		return AgeBandUnder8
	case age <= 12:
		return AgeBand8To12
	case age <= 17:
		return AgeBand13To17
	default:
		return AgeBandAdult
	}
}

// LanguageGroupFor maps a primary language onto its group.
func LanguageGroupFor(language string) LanguageGroup {
	if language == "English" {
		return LanguageEnglish
	}
	return LanguageNonEnglish
}

// SubgroupFor derives the subgroup key of a learner signal.
func SubgroupFor(d Demographic) SubgroupKey {
	sex := d.Sex
	if sex == "" {
		sex = SexOther
	}
	return SubgroupKey{
		AgeBand:  AgeBandFor(d.Age),
		Sex:      sex,
		Language: LanguageGroupFor(d.PrimaryLanguage),
	}
}
