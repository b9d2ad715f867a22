// Package diff compares two recommendation snapshots: which pairings appeared,
// which disappeared, and how the numeric feature profile shifted between them.
package diff

import (
	"math"
	"sort"

	"github.com/mhartmann/staffing-recommender-go/pkg/models"
)

// FieldStats are basic statistics over one numeric field of a pair set.
// Pointers are nil when too few values exist to compute the statistic.
type FieldStats struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	StdDev *float64 `json:"std_dev"`
}

// FieldDiff compares one numeric field between added and removed pairs
type FieldDiff struct {
	Added      FieldStats `json:"added"`
	Removed    FieldStats `json:"removed"`
	MeanChange *float64   `json:"mean_change_added_minus_removed"`
}

// Report is the full comparison of two snapshots
type Report struct {
	Added                []models.ScoredCandidateRow `json:"added"`
	Removed              []models.ScoredCandidateRow `json:"removed"`
	Fields               map[string]FieldDiff        `json:"fields"`
	AddedOutlierShare    *float64                    `json:"added_outlier_share"`
	RemovedOutlierShare  *float64                    `json:"removed_outlier_share"`
	OldCount             int                         `json:"old_count"`
	NewCount             int                         `json:"new_count"`
}

type pairKey struct {
	employee string
	client   string
}

// Compare partitions two assigned-pair sets into added and removed pairings
// (keyed by employee and client ID) and computes per-field statistics over
// both partitions.
func Compare(previous, current []models.ScoredCandidateRow) Report {
	oldByKey := index(previous)
	newByKey := index(current)

	var added, removed []models.ScoredCandidateRow
	for key, row := range newByKey {
		if _, ok := oldByKey[key]; !ok {
			added = append(added, row)
		}
	}
	for key, row := range oldByKey {
		if _, ok := newByKey[key]; !ok {
			removed = append(removed, row)
		}
	}
	sortRows(added)
	sortRows(removed)

	fields := make(map[string]FieldDiff)
	for name, extract := range numericFields {
		addedStats := stats(values(added, extract))
		removedStats := stats(values(removed, extract))
		fd := FieldDiff{Added: addedStats, Removed: removedStats}
		if addedStats.Mean != nil && removedStats.Mean != nil {
			change := *addedStats.Mean - *removedStats.Mean
			fd.MeanChange = &change
		}
		fields[name] = fd
	}

	return Report{
		Added:               added,
		Removed:             removed,
		Fields:              fields,
		AddedOutlierShare:   outlierShare(added),
		RemovedOutlierShare: outlierShare(removed),
		OldCount:            len(previous),
		NewCount:            len(current),
	}
}

// numericFields maps field names to extractors; nil results are excluded from
// the statistics, keeping "no experience" out of the averages.
var numericFields = map[string]func(models.ScoredCandidateRow) *float64{
	"time_to_school": func(r models.ScoredCandidateRow) *float64 { return &r.TimeToSchool },
	"client_experience": func(r models.ScoredCandidateRow) *float64 {
		return r.ClientExperience
	},
	"school_experience": func(r models.ScoredCandidateRow) *float64 {
		return r.SchoolExperience
	},
	"recent_client_experience": func(r models.ScoredCandidateRow) *float64 {
		return r.RecentClientExperience
	},
	"priority":          func(r models.ScoredCandidateRow) *float64 { return &r.Priority },
	"abnormality_score": func(r models.ScoredCandidateRow) *float64 { return &r.AbnormalityScore },
}

func index(rows []models.ScoredCandidateRow) map[pairKey]models.ScoredCandidateRow {
	m := make(map[pairKey]models.ScoredCandidateRow, len(rows))
	for _, r := range rows {
		m[pairKey{r.EmployeeID, r.ClientID}] = r
	}
	return m
}

func sortRows(rows []models.ScoredCandidateRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EmployeeID != rows[j].EmployeeID {
			return rows[i].EmployeeID < rows[j].EmployeeID
		}
		return rows[i].ClientID < rows[j].ClientID
	})
}

func values(rows []models.ScoredCandidateRow, extract func(models.ScoredCandidateRow) *float64) []float64 {
	var vals []float64
	for _, r := range rows {
		if v := extract(r); v != nil {
			vals = append(vals, *v)
		}
	}
	return vals
}

func stats(vals []float64) FieldStats {
	s := FieldStats{Count: len(vals)}
	if len(vals) == 0 {
		return s
	}

	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	s.Mean = &mean

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}
	s.Median = &median

	if len(vals) >= 2 {
		variance := 0.0
		for _, v := range vals {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / float64(len(vals)))
		s.StdDev = &std
	}
	return s
}

func outlierShare(rows []models.ScoredCandidateRow) *float64 {
	if len(rows) == 0 {
		return nil
	}
	outliers := 0
	for _, r := range rows {
		if r.AbnormalityLabel == models.LabelOutlier {
			outliers++
		}
	}
	share := float64(outliers) / float64(len(rows))
	return &share
}
