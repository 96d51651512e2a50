package monitor

import (
	"sort"

	"github.com/miradorstack/learnsense/internal/models"
)

// Subgroup categories audited for routing disparities.
const (
	CategoryAgeBand  = "age_band"
	CategorySex      = "sex"
	CategoryLanguage = "language"
)

// GroupStats summarises decisions routed for one demographic group.
type GroupStats struct {
	Group           string  `json:"group"`
	SampleSize      int     `json:"sample_size"`
	MeanProbability float64 `json:"mean_probability"`
	VisualRate      float64 `json:"visual_rate"`
	ReviewRate      float64 `json:"review_rate"`
}

// CategoryAudit compares groups within one demographic category.
type CategoryAudit struct {
	Category string       `json:"category"`
	Groups   []GroupStats `json:"groups"`
	Gap      float64      `json:"probability_gap"`
	Concern  bool         `json:"fairness_concern"`
}

type groupAggregate struct {
	count   int
	sumProb float64
	visual  int
	review  int
}

// AuditSubgroups groups decisions by age band, sex and language. Groups with
// fewer than minGroupSize decisions are reported but excluded from the gap.
func AuditSubgroups(decisions []models.DecisionRecord, minGroupSize int, maxGap float64) []CategoryAudit {
	categories := map[string]map[string]*groupAggregate{
		CategoryAgeBand:  {},
		CategorySex:      {},
		CategoryLanguage: {},
	}
	for _, d := range decisions {
		add(categories[CategoryAgeBand], string(d.Subgroup.AgeBand), d)
		add(categories[CategorySex], string(d.Subgroup.Sex), d)
		add(categories[CategoryLanguage], string(d.Subgroup.Language), d)
	}

	audits := make([]CategoryAudit, 0, len(categories))
	for _, name := range []string{CategoryAgeBand, CategorySex, CategoryLanguage} {
		audits = append(audits, auditCategory(name, categories[name], minGroupSize, maxGap))
	}
	return audits
}

func add(groups map[string]*groupAggregate, key string, d models.DecisionRecord) {
	if key == "" {
		key = "unknown"
	}
	agg, ok := groups[key]
	if !ok {
		agg = &groupAggregate{}
		groups[key] = agg
	}
	agg.count++
	agg.sumProb += d.ADHDProbability
	switch d.RecommendedAction {
	case models.ActionVisualAndSpeech:
		agg.visual++
	case models.ActionManualReview:
		agg.review++
	}
}

func auditCategory(name string, groups map[string]*groupAggregate, minGroupSize int, maxGap float64) CategoryAudit {
	audit := CategoryAudit{Category: name, Groups: make([]GroupStats, 0, len(groups))}
	lo, hi := 1.0, 0.0
	eligible := 0
	for key, agg := range groups {
		stats := GroupStats{
			Group:           key,
			SampleSize:      agg.count,
			MeanProbability: agg.sumProb / float64(agg.count),
			VisualRate:      float64(agg.visual) / float64(agg.count),
			ReviewRate:      float64(agg.review) / float64(agg.count),
		}
		audit.Groups = append(audit.Groups, stats)
		if agg.count < minGroupSize {
			continue
		}
		eligible++
		if stats.MeanProbability < lo {
			lo = stats.MeanProbability
		}
		if stats.MeanProbability > hi {
			hi = stats.MeanProbability
		}
	}
	sort.Slice(audit.Groups, func(i, j int) bool {
		return audit.Groups[i].Group < audit.Groups[j].Group
	})
	if eligible >= 2 {
		audit.Gap = hi - lo
		audit.Concern = audit.Gap > maxGap
	}
	return audit
}
