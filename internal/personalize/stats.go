package personalize

import "github.com/miradorstack/learnsense/internal/models"

// FormatStats describes how plans are distributed across lesson formats.
type FormatStats struct {
	Total        int                       `json:"total_learners"`
	Distribution map[models.Action]int     `json:"format_distribution"`
	Percentages  map[models.Action]float64 `json:"format_percentages"`
	MostCommon   models.Action             `json:"most_common_format,omitempty"`
}

// Statistics counts formats over plans. Ties for most common resolve to the
// format seen first.
func Statistics(formats []models.Action) FormatStats {
	stats := FormatStats{
		Distribution: make(map[models.Action]int),
		Percentages:  make(map[models.Action]float64),
	}
	var order []models.Action
	for _, f := range formats {
		if _, seen := stats.Distribution[f]; !seen {
			order = append(order, f)
		}
		stats.Distribution[f]++
	}
	stats.Total = len(formats)
	if stats.Total == 0 {
		return stats
	}

	best := 0
	for _, f := range order {
		n := stats.Distribution[f]
		stats.Percentages[f] = float64(n) / float64(stats.Total)
		if n > best {
			best = n
			stats.MostCommon = f
		}
	}
	return stats
}
