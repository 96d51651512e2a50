package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/miradorstack/learnsense/internal/engine"
	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/repo"
	"github.com/miradorstack/learnsense/internal/utils"
)

type spyPredictor struct {
	calls  int
	record models.DecisionRecord
}

func (s *spyPredictor) Predict(learnerID string, _ models.LearnerSignal) engine.Prediction {
	s.calls++
	rec := s.record
	rec.LearnerID = learnerID
	if rec.ID == "" {
		rec.ID = "decision-" + learnerID
	}
	return engine.Prediction{Record: rec}
}

type memoryDecisions struct {
	mu      sync.Mutex
	records []models.DecisionRecord
	saveErr error
	listErr error
}

func (m *memoryDecisions) SaveDecision(_ context.Context, rec models.DecisionRecord, _ map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryDecisions) ListDecisions(_ context.Context, learnerID string, limit int) ([]models.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.DecisionRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].LearnerID == learnerID {
			out = append(out, m.records[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type memoryCases struct {
	mu    sync.Mutex
	cases map[string]models.ActiveLearningCase
}

func newMemoryCases() *memoryCases {
	return &memoryCases{cases: make(map[string]models.ActiveLearningCase)}
}

func (m *memoryCases) CreateCase(_ context.Context, c models.ActiveLearningCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.ID] = c
	return nil
}

func (m *memoryCases) GetCase(_ context.Context, id string) (models.ActiveLearningCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return models.ActiveLearningCase{}, utils.NewAppError("get case", "case not found", utils.ErrNotFound)
	}
	return c, nil
}

func (m *memoryCases) UpdateCase(_ context.Context, c models.ActiveLearningCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.cases[c.ID]
	if !ok {
		return utils.NewAppError("update case", "case not found", utils.ErrNotFound)
	}
	if stored.Status != models.CaseStatusPending {
		return utils.NewAppError("update case", "case is already "+string(stored.Status), models.ErrInvalidTransition)
	}
	m.cases[c.ID] = c
	return nil
}

// staleCases hands out the snapshot taken before another reviewer closed the case.
type staleCases struct {
	*memoryCases
	snapshot models.ActiveLearningCase
}

func (s *staleCases) GetCase(_ context.Context, id string) (models.ActiveLearningCase, error) {
	if id != s.snapshot.ID {
		return models.ActiveLearningCase{}, utils.NewAppError("get case", "case not found", utils.ErrNotFound)
	}
	return s.snapshot, nil
}

func (m *memoryCases) ListCases(_ context.Context, filter models.CaseFilter) ([]models.ActiveLearningCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActiveLearningCase
	for _, c := range m.cases {
		if filter.Status == "" || c.Status == filter.Status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type stubRegistry struct {
	enabled bool
	record  repo.ConsentRecord
	err     error
}

func (s stubRegistry) Enabled() bool { return s.enabled }

func (s stubRegistry) Lookup(context.Context, string) (repo.ConsentRecord, error) {
	return s.record, s.err
}

var errStorage = errors.New("disk full")

func consentingSignal() *models.LearnerSignal {
	return &models.LearnerSignal{
		Demographic: models.Demographic{Age: 10, Sex: models.SexFemale, PrimaryLanguage: "English"},
		Behavioral:  models.Behavioral{OnTaskRatio: 0.5, TimeOnTaskSeconds: 300},
		Interaction: models.Interaction{AccuracyPct: 60},
		Contextual:  models.Contextual{DeviceType: "tablet"},
		Consent:     models.Consent{ConsentGiven: true, ConsentDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}
