package models

// PredictionRequest is the inbound payload of the prediction endpoint.
type PredictionRequest struct {
	LearnerID   string         `json:"learner_id"`
	LearnerData *LearnerSignal `json:"learner_data"`
}

// CollectRequest is the inbound payload of the real-time collection endpoint.
type CollectRequest struct {
	UserID   string         `json:"user_id"`
	DataType SignalType     `json:"data_type"`
	Value    float64        `json:"value"`
	Metadata *PointMetadata `json:"metadata,omitempty"`
}

// RecentQuery filters real-time points for one learner.
type RecentQuery struct {
	LearnerID     string
	Type          SignalType
	WindowMinutes float64
}

// LabelRequest carries a reviewer's correction for an active-learning case.
type LabelRequest struct {
	Role       string  `json:"role"`
	Label      bool    `json:"label"`
	Confidence float64 `json:"confidence"`
}

// CaseFilter selects active-learning cases.
type CaseFilter struct {
	Status CaseStatus
	Limit  int
}
