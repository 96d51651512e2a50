package models

import (
	"errors"
	"time"
)

// CaseStatus is the lifecycle state of an active-learning case.
type CaseStatus string

const (
	CaseStatusPending   CaseStatus = "pending"
	CaseStatusLabeled   CaseStatus = "labeled"
	CaseStatusDismissed CaseStatus = "dismissed"
)

// CaseReason explains why a decision was queued for human review.
type CaseReason string

const (
	CaseReasonAmbiguous       CaseReason = "ambiguous_prediction"
	CaseReasonHighUncertainty CaseReason = "high_uncertainty"
)

// ErrInvalidTransition reports a status change that the case lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid case transition")

// HumanCorrection is the label supplied by a reviewer.
type HumanCorrection struct {
	Role       string    `json:"role"`
	Label      bool      `json:"label"`
	Confidence float64   `json:"confidence"`
	LabeledAt  time.Time `json:"labeled_at"`
}

// ActiveLearningCase is a decision queued for human correction.
type ActiveLearningCase struct {
	ID                   string           `json:"id"`
	LearnerID            string           `json:"learner_id"`
	DecisionID           string           `json:"decision_id"`
	ADHDProbability      float64          `json:"adhd_probability"`
	CalibratedConfidence float64          `json:"calibrated_confidence"`
	EpistemicUncertainty float64          `json:"epistemic_uncertainty"`
	Reason               CaseReason       `json:"reason"`
	Status               CaseStatus       `json:"status"`
	Correction           *HumanCorrection `json:"correction,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Active reports whether the case still awaits a reviewer.
func (c ActiveLearningCase) Active() bool {
	return c.Status == CaseStatusPending
}

// Label moves a pending case to labeled with the reviewer's correction.
func (c *ActiveLearningCase) Label(correction HumanCorrection, now time.Time) error {
	if !c.Active() {
		return ErrInvalidTransition
	}
	if correction.LabeledAt.IsZero() {
		correction.LabeledAt = now
	}
	c.Correction = &correction
	c.Status = CaseStatusLabeled
	c.UpdatedAt = now
	return nil
}

// Dismiss closes a pending case without a label.
func (c *ActiveLearningCase) Dismiss(now time.Time) error {
	if !c.Active() {
		return ErrInvalidTransition
	}
	c.Status = CaseStatusDismissed
	c.UpdatedAt = now
	return nil
}
