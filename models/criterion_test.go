package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriteriaSetValidate(t *testing.T) {
	tests := []struct {
		name     string
		criteria CriteriaSet
		wantErr  bool
	}{
		{
			name:     "default set is valid",
			criteria: DefaultCriteria,
		},
		{
			name:    "empty set",
			wantErr: true,
		},
		{
			name: "weights not summing to one",
			criteria: CriteriaSet{
				{ID: "a", Weight: 0.5},
				{ID: "b", Weight: 0.4},
			},
			wantErr: true,
		},
		{
			name: "duplicate ids",
			criteria: CriteriaSet{
				{ID: "a", Weight: 0.5},
				{ID: "a", Weight: 0.5},
			},
			wantErr: true,
		},
		{
			name: "reserved overall id",
			criteria: CriteriaSet{
				{ID: OverallKey, Weight: 1.0},
			},
			wantErr: true,
		},
		{
			name: "weight outside range",
			criteria: CriteriaSet{
				{ID: "a", Weight: 1.5},
				{ID: "b", Weight: -0.5},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestComputeOverallWeighted(t *testing.T) {
	values := map[string]float64{
		"songQuality":  8,
		"staging":      7,
		"vocalQuality": 8,
	}

	overall, ok := DefaultCriteria.ComputeOverall(values)
	require.True(t, ok)
	// 8*0.4 + 7*0.25 + 8*0.35
	assert.InDelta(t, 7.75, overall, 1e-9)
}

func TestComputeOverallUndefinedUntilComplete(t *testing.T) {
	values := map[string]float64{
		"songQuality": 10,
		"staging":     10,
	}

	_, ok := DefaultCriteria.ComputeOverall(values)
	assert.False(t, ok, "overall must be undefined while a criterion is missing")

	// A present zero still counts as rated.
	values["vocalQuality"] = 0
	overall, ok := DefaultCriteria.ComputeOverall(values)
	require.True(t, ok)
	assert.InDelta(t, 6.5, overall, 1e-9)
}

func TestScoreEntryRecompute(t *testing.T) {
	entry := ScoreEntry{Values: map[string]float64{"songQuality": 9}}
	entry.Recompute(DefaultCriteria)
	assert.Nil(t, entry.Overall)

	entry.Values["staging"] = 8
	entry.Values["vocalQuality"] = 7
	entry.Recompute(DefaultCriteria)
	require.NotNil(t, entry.Overall)
	assert.InDelta(t, 9*0.4+8*0.25+7*0.35, *entry.Overall, 1e-9)
}

func TestScoreEntryValueOverallKey(t *testing.T) {
	entry := ScoreEntry{Values: map[string]float64{"songQuality": 9}}

	_, ok := entry.Value(OverallKey)
	assert.False(t, ok)

	v, ok := entry.Value("songQuality")
	require.True(t, ok)
	assert.Equal(t, 9.0, v)
}
