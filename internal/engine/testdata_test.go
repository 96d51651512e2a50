package engine

import (
	"time"

	"github.com/miradorstack/learnsense/internal/models"
)

var sessionStart = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func highRiskSignal() models.LearnerSignal {
	return models.LearnerSignal{
		Demographic:   models.Demographic{Age: 9, Sex: models.SexMale, PrimaryLanguage: "English"},
		Behavioral:    models.Behavioral{OnTaskRatio: 0.2, FidgetEvents: 20, AttentionShiftCount: 10, TimeOnTaskSeconds: 600},
		Interaction:   models.Interaction{Clicks: 40, Scrolls: 20, ResponseLatencyMs: 3000, AccuracyPct: 40},
		ScreenMedia:   models.ScreenMedia{VideoWatchPct: 0.8, AudioPlayPct: 0.8},
		Questionnaire: models.Questionnaire{InattentionScore: 8, HyperactivityScore: 8, ScaleName: "Conners"},
		Contextual:    models.Contextual{SessionTimeOfDay: "afternoon", DeviceType: "desktop", SessionStartedAt: sessionStart},
		Consent:       models.Consent{ConsentGiven: true},
	}
}

func lowRiskSignal() models.LearnerSignal {
	return models.LearnerSignal{
		Demographic:   models.Demographic{Age: 16, Sex: models.SexFemale, PrimaryLanguage: "English"},
		Behavioral:    models.Behavioral{OnTaskRatio: 0.9, FidgetEvents: 1, AttentionShiftCount: 1, TimeOnTaskSeconds: 900},
		Interaction:   models.Interaction{Clicks: 15, Scrolls: 5, ResponseLatencyMs: 800, AccuracyPct: 95},
		ScreenMedia:   models.ScreenMedia{VideoWatchPct: 0.2, AudioPlayPct: 0.1},
		Questionnaire: models.Questionnaire{InattentionScore: 1, HyperactivityScore: 1, ScaleName: "Vanderbilt"},
		Contextual:    models.Contextual{SessionTimeOfDay: "morning", DeviceType: "desktop", SessionStartedAt: sessionStart},
		Consent:       models.Consent{ConsentGiven: true},
	}
}

// midRiskSignal scores roughly 0.49 under the default weights.
func midRiskSignal() models.LearnerSignal {
	return models.LearnerSignal{
		Demographic:   models.Demographic{Age: 12, Sex: models.SexFemale, PrimaryLanguage: "English"},
		Behavioral:    models.Behavioral{OnTaskRatio: 0.6, FidgetEvents: 4, AttentionShiftCount: 3, TimeOnTaskSeconds: 600},
		Interaction:   models.Interaction{Clicks: 20, Scrolls: 10, ResponseLatencyMs: 1500, AccuracyPct: 75},
		ScreenMedia:   models.ScreenMedia{VideoWatchPct: 0.5, AudioPlayPct: 0.4},
		Questionnaire: models.Questionnaire{InattentionScore: 3, HyperactivityScore: 3, ScaleName: "SNAP-IV"},
		Contextual:    models.Contextual{SessionTimeOfDay: "afternoon", DeviceType: "desktop", SessionStartedAt: sessionStart},
		Consent:       models.Consent{ConsentGiven: true},
	}
}
