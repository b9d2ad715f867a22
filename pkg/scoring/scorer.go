// Package scoring wraps the pretrained unsupervised abnormality model. The
// model is trained offline; this package only evaluates the exported artifact.
package scoring

import (
	"fmt"
	"os"

	"github.com/mhartmann/staffing-recommender-go/pkg/models"
)

// FeatureNames is the fixed feature ordering the model was trained with. It
// matches the CandidateRow field order; Encode must stay in sync.
var FeatureNames = []string{
	"time_to_school",
	"client_experience",
	"school_experience",
	"recent_client_experience",
	"priority",
	"availability_match",
	"mobility",
	"sex_constraint_active",
	"qualifications_met",
}

// MissingSentinel is the numeric stand-in for absent experience values. The
// model was trained with the same sentinel, so "no experience" occupies its
// own region of feature space instead of colliding with zero.
const MissingSentinel = -1.0

// Encode turns a candidate row into the model's numeric feature vector:
// booleans as 0/1, nil experience counts as MissingSentinel.
func Encode(row models.CandidateRow) []float64 {
	return []float64{
		row.TimeToSchool,
		orSentinel(row.ClientExperience),
		orSentinel(row.SchoolExperience),
		orSentinel(row.RecentClientExperience),
		row.Priority,
		boolToFloat(row.AvailabilityMatch),
		boolToFloat(row.Mobility),
		boolToFloat(row.SexConstraintActive),
		boolToFloat(row.QualificationsMet),
	}
}

// Scorer assigns abnormality scores and labels to candidate rows
type Scorer struct {
	forest *Forest
}

// Load reads the model artifact at path. A missing or unreadable artifact is
// fatal (models.ErrModelUnavailable); there is no fallback scorer.
func Load(path string) (*Scorer, error) {
	forest, err := LoadForest(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: artifact %s not found", models.ErrModelUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}
	return &Scorer{forest: forest}, nil
}

// NewScorer wraps an already loaded forest
func NewScorer(forest *Forest) *Scorer {
	return &Scorer{forest: forest}
}

// Score assigns each row its abnormality score and label, independently per
// row. Deterministic and side-effect free.
func (s *Scorer) Score(rows []models.CandidateRow) []models.ScoredCandidateRow {
	scored := make([]models.ScoredCandidateRow, len(rows))
	for i, row := range rows {
		score := s.forest.ScoreSample(Encode(row))
		label := models.LabelNormal
		if score < s.forest.Offset {
			label = models.LabelOutlier
		}
		scored[i] = models.ScoredCandidateRow{
			CandidateRow:     row,
			AbnormalityScore: score,
			AbnormalityLabel: label,
		}
	}
	return scored
}

// Explain returns each feature's signed contribution to the row's anomaly
// score, in trained feature order. A feature's contribution is the score
// delta against the training-mean baseline for that feature. This costs one
// extra forest evaluation per feature, so it is only ever run for rows the
// optimizer actually selected, never for the whole pool.
func (s *Scorer) Explain(row models.CandidateRow) []models.Contribution {
	x := Encode(row)
	base := s.forest.ScoreSample(x)

	contributions := make([]models.Contribution, len(x))
	for i := range x {
		perturbed := make([]float64, len(x))
		copy(perturbed, x)
		perturbed[i] = s.forest.FeatureMeans[i]
		contributions[i] = models.Contribution{
			Feature: s.forest.FeatureNames[i],
			Value:   base - s.forest.ScoreSample(perturbed),
		}
	}
	return contributions
}

func orSentinel(v *float64) float64 {
	if v == nil {
		return MissingSentinel
	}
	return *v
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
