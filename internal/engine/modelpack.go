package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/learnsense/internal/features"
	"github.com/miradorstack/learnsense/internal/models"
)

// DefaultModelVersion tags decisions produced by the built-in weight table.
const DefaultModelVersion = "linear-v1"

// ModelPack is the auditable scoring configuration: feature weights plus
// optional per-subgroup probability thresholds.
type ModelPack struct {
	Version   string               `yaml:"version"`
	Weights   map[string]float64   `yaml:"weights"`
	Subgroups []SubgroupThresholds `yaml:"subgroups"`
}

// SubgroupThresholds overrides the default bands for one demographic group.
type SubgroupThresholds struct {
	AgeBand  models.AgeBand       `yaml:"age_band"`
	Sex      models.Sex           `yaml:"sex"`
	Language models.LanguageGroup `yaml:"language"`
	High     float64              `yaml:"high"`
	Medium   float64              `yaml:"medium"`
}

// Key returns the lookup key of the override.
func (s SubgroupThresholds) Key() models.SubgroupKey {
	return models.SubgroupKey{AgeBand: s.AgeBand, Sex: s.Sex, Language: s.Language}
}

// DefaultWeights is the built-in signed weight table.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		features.Age:                  -0.005,
		features.IsMale:               0.03,
		features.EnglishPrimary:       -0.01,
		features.OnTaskRatio:          -0.30,
		features.FidgetEvents:         0.01,
		features.AttentionShiftCount:  0.015,
		features.TimeOnTaskSeconds:    -0.0001,
		features.Clicks:               0.002,
		features.Scrolls:              0.001,
		features.ResponseLatencyMs:    0.00002,
		features.AccuracyPct:          -0.003,
		features.VideoWatchPct:        0.05,
		features.AudioPlayPct:         0.05,
		features.InattentionScore:     0.03,
		features.HyperactivityScore:   0.03,
		features.ADHDComposite:        0.04,
		features.AttentionEfficiency:  -0.10,
		features.FidgetRate:           0.05,
		features.InteractionIntensity: 0.005,
		features.MorningSession:       -0.02,
		features.MobileDevice:         0.02,
	}
}

// DefaultModelPack returns the built-in pack with no subgroup overrides.
func DefaultModelPack() *ModelPack {
	return &ModelPack{Version: DefaultModelVersion, Weights: DefaultWeights()}
}

// LoadModelPack reads a YAML model pack. An empty path or a missing file
// yields the default pack.
func LoadModelPack(path string, logger *slog.Logger) (*ModelPack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return DefaultModelPack(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("model pack not found, using built-in weights", slog.String("path", path))
			return DefaultModelPack(), nil
		}
		return nil, fmt.Errorf("read model pack: %w", err)
	}

	var pack ModelPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse model pack: %w", err)
	}
	if err := pack.validate(); err != nil {
		return nil, err
	}
	if pack.Version == "" {
		pack.Version = DefaultModelVersion
	}
	if len(pack.Weights) == 0 {
		pack.Weights = DefaultWeights()
	}
	logger.Info("model pack loaded",
		slog.String("version", pack.Version),
		slog.Int("weights", len(pack.Weights)),
		slog.Int("subgroups", len(pack.Subgroups)))
	return &pack, nil
}

func (p *ModelPack) validate() error {
	for _, sg := range p.Subgroups {
		if sg.High < 0 || sg.High > 1 || sg.Medium < 0 || sg.Medium > 1 {
			return fmt.Errorf("subgroup %s: thresholds must be within [0,1]", sg.Key())
		}
		if sg.Medium > sg.High {
			return fmt.Errorf("subgroup %s: medium threshold %.2f exceeds high %.2f", sg.Key(), sg.Medium, sg.High)
		}
	}
	return nil
}
