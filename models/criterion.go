package models

import (
	"errors"
	"fmt"
	"math"
)

// OverallKey is the reserved field name for the derived weighted score.
// It must never collide with a criterion id.
const OverallKey = "overall"

const weightTolerance = 1e-9

// Criterion is one weighted scoring dimension. The criteria set is static
// per deployment and weights must sum to 1.0 so that the overall score is a
// true weighted average.
type Criterion struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

type CriteriaSet []Criterion

// DefaultCriteria matches the deployment this service was built for.
// Override via CRITERIA_JSON.
var DefaultCriteria = CriteriaSet{
	{ID: "songQuality", Label: "Song Quality", Weight: 0.4, Description: "How good is the composition, melody, and lyrics of the song"},
	{ID: "staging", Label: "Staging", Weight: 0.25, Description: "How interesting and amazing the visual presentation is on stage"},
	{ID: "vocalQuality", Label: "Vocal Quality", Weight: 0.35, Description: "How talented and skilled the performer is vocally"},
}

// Validate checks the startup preconditions for a criteria set: at least one
// criterion, unique non-empty ids, no id shadowing the overall field, and
// weights summing to 1.0 within floating-point tolerance.
func (cs CriteriaSet) Validate() error {
	if len(cs) == 0 {
		return errors.New("no criteria defined")
	}

	seen := make(map[string]struct{}, len(cs))
	var sum float64
	for _, c := range cs {
		if c.ID == "" {
			return errors.New("criterion id must not be empty")
		}
		if c.ID == OverallKey {
			return fmt.Errorf("criterion id %q is reserved", OverallKey)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate criterion id %q", c.ID)
		}
		seen[c.ID] = struct{}{}

		if c.Weight < 0 || c.Weight > 1 {
			return fmt.Errorf("criterion %q weight %v outside [0,1]", c.ID, c.Weight)
		}
		sum += c.Weight
	}

	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("criteria weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// ComputeOverall returns the weighted sum of the given per-criterion values.
// The second return value reports whether the overall is defined at all: it
// is false unless every criterion id in the set has a value. An undefined
// overall is distinct from zero and must be excluded from ranking.
func (cs CriteriaSet) ComputeOverall(values map[string]float64) (float64, bool) {
	var overall float64
	for _, c := range cs {
		v, ok := values[c.ID]
		if !ok {
			return 0, false
		}
		overall += v * c.Weight
	}
	return overall, true
}

// IDs returns the criterion ids in declaration order.
func (cs CriteriaSet) IDs() []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

// Contains reports whether id names a criterion in the set.
func (cs CriteriaSet) Contains(id string) bool {
	for _, c := range cs {
		if c.ID == id {
			return true
		}
	}
	return false
}
