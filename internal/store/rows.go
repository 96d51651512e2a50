package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/miradorstack/learnsense/internal/models"
)

type decisionRow struct {
	ID           string  `gorm:"primaryKey;size:36"`
	LearnerID    string  `gorm:"size:128;not null;index:idx_decisions_learner,priority:1"`
	Probability  float64 `gorm:"not null"`
	Confidence   float64 `gorm:"not null"`
	Uncertainty  float64 `gorm:"not null"`
	Action       string  `gorm:"size:32;not null"`
	AgeBand      string  `gorm:"size:8"`
	Sex          string  `gorm:"size:8"`
	Language     string  `gorm:"size:16"`
	ModelVersion string  `gorm:"size:64"`
	Strategy     string  `gorm:"column:uncertainty_strategy;size:32"`
	TopFeatures  datatypes.JSON
	Features     datatypes.JSON
	CreatedAt    time.Time `gorm:"not null;index:idx_decisions_learner,priority:2"`
}

func (decisionRow) TableName() string { return "decision_records" }

type caseRow struct {
	ID                   string  `gorm:"primaryKey;size:36"`
	LearnerID            string  `gorm:"size:128;not null;index"`
	DecisionID           string  `gorm:"size:36;not null"`
	Probability          float64 `gorm:"not null"`
	Confidence           float64 `gorm:"not null"`
	Uncertainty          float64 `gorm:"not null"`
	Reason               string  `gorm:"size:32;not null"`
	Status               string  `gorm:"size:16;not null;index"`
	CorrectionRole       string  `gorm:"size:32"`
	CorrectionLabel      *bool
	CorrectionConfidence float64
	LabeledAt            *time.Time
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time
}

func (caseRow) TableName() string { return "active_learning_cases" }

type pointRow struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	LearnerID  string    `gorm:"size:128;not null;index:idx_points_lookup,priority:1"`
	Type       string    `gorm:"column:signal_type;size:16;not null;index:idx_points_lookup,priority:2"`
	Value      float64   `gorm:"not null"`
	Timestamp  time.Time `gorm:"column:observed_at;not null;index:idx_points_lookup,priority:3"`
	Source     string    `gorm:"size:64"`
	Confidence float64
	Context    string `gorm:"size:256"`
}

func (pointRow) TableName() string { return "realtime_points" }

func toDecisionRow(rec models.DecisionRecord, features map[string]float64) (decisionRow, error) {
	top, err := json.Marshal(rec.TopFeatures)
	if err != nil {
		return decisionRow{}, err
	}
	if features == nil {
		features = map[string]float64{}
	}
	feats, err := json.Marshal(features)
	if err != nil {
		return decisionRow{}, err
	}
	return decisionRow{
		ID:           rec.ID,
		LearnerID:    rec.LearnerID,
		Probability:  rec.ADHDProbability,
		Confidence:   rec.CalibratedConfidence,
		Uncertainty:  rec.EpistemicUncertainty,
		Action:       string(rec.RecommendedAction),
		AgeBand:      string(rec.Subgroup.AgeBand),
		Sex:          string(rec.Subgroup.Sex),
		Language:     string(rec.Subgroup.Language),
		ModelVersion: rec.ModelVersion,
		Strategy:     rec.UncertaintyStrategy,
		TopFeatures:  datatypes.JSON(top),
		Features:     datatypes.JSON(feats),
		CreatedAt:    rec.Timestamp.UTC(),
	}, nil
}

func (r decisionRow) record() (models.DecisionRecord, error) {
	var top []models.FeatureContribution
	if len(r.TopFeatures) > 0 {
		if err := json.Unmarshal(r.TopFeatures, &top); err != nil {
			return models.DecisionRecord{}, err
		}
	}
	return models.DecisionRecord{
		ID:                   r.ID,
		LearnerID:            r.LearnerID,
		ADHDProbability:      r.Probability,
		CalibratedConfidence: r.Confidence,
		EpistemicUncertainty: r.Uncertainty,
		TopFeatures:          top,
		RecommendedAction:    models.Action(r.Action),
		Subgroup: models.SubgroupKey{
			AgeBand:  models.AgeBand(r.AgeBand),
			Sex:      models.Sex(r.Sex),
			Language: models.LanguageGroup(r.Language),
		},
		ModelVersion:        r.ModelVersion,
		UncertaintyStrategy: r.Strategy,
		Timestamp:           r.CreatedAt.UTC(),
	}, nil
}

func (r decisionRow) features() (map[string]float64, error) {
	out := map[string]float64{}
	if len(r.Features) == 0 {
		return out, nil
	}
	err := json.Unmarshal(r.Features, &out)
	return out, err
}

func toCaseRow(c models.ActiveLearningCase) caseRow {
	row := caseRow{
		ID:          c.ID,
		LearnerID:   c.LearnerID,
		DecisionID:  c.DecisionID,
		Probability: c.ADHDProbability,
		Confidence:  c.CalibratedConfidence,
		Uncertainty: c.EpistemicUncertainty,
		Reason:      string(c.Reason),
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
	if c.Correction != nil {
		label := c.Correction.Label
		labeledAt := c.Correction.LabeledAt.UTC()
		row.CorrectionRole = c.Correction.Role
		row.CorrectionLabel = &label
		row.CorrectionConfidence = c.Correction.Confidence
		row.LabeledAt = &labeledAt
	}
	return row
}

func (r caseRow) activeLearningCase() models.ActiveLearningCase {
	c := models.ActiveLearningCase{
		ID:                   r.ID,
		LearnerID:            r.LearnerID,
		DecisionID:           r.DecisionID,
		ADHDProbability:      r.Probability,
		CalibratedConfidence: r.Confidence,
		EpistemicUncertainty: r.Uncertainty,
		Reason:               models.CaseReason(r.Reason),
		Status:               models.CaseStatus(r.Status),
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
	if r.CorrectionLabel != nil {
		corr := &models.HumanCorrection{
			Role:       r.CorrectionRole,
			Label:      *r.CorrectionLabel,
			Confidence: r.CorrectionConfidence,
		}
		if r.LabeledAt != nil {
			corr.LabeledAt = r.LabeledAt.UTC()
		}
		c.Correction = corr
	}
	return c
}

func toPointRow(p models.DataPoint) pointRow {
	row := pointRow{
		LearnerID: p.LearnerID,
		Type:      string(p.Type),
		Value:     p.Value,
		Timestamp: p.Timestamp.UTC(),
	}
	if p.Metadata != nil {
		row.Source = p.Metadata.Source
		row.Confidence = p.Metadata.Confidence
		row.Context = p.Metadata.Context
	}
	return row
}

func (r pointRow) point() models.DataPoint {
	p := models.DataPoint{
		LearnerID: r.LearnerID,
		Type:      models.SignalType(r.Type),
		Value:     r.Value,
		Timestamp: r.Timestamp.UTC(),
	}
	if r.Source != "" || r.Confidence != 0 || r.Context != "" {
		p.Metadata = &models.PointMetadata{Source: r.Source, Confidence: r.Confidence, Context: r.Context}
	}
	return p
}
