package models

import (
	"encoding/json"
	"time"
)

// ScoreEntry is one voter's full set of ratings for one contestant in one
// contest, keyed externally by (userID, contestID, contestantID).
//
// Values holds per-criterion ratings; presence of a key means the criterion
// has been rated. Overall is denormalized and recomputed on every partial
// update: it is non-nil iff every configured criterion has a value.
type ScoreEntry struct {
	Values       map[string]float64
	Overall      *float64
	VoterName    string
	VoterIsAdmin bool
	UpdatedAt    time.Time
}

// ContestSnapshot is the aggregation engine's read model for one contest:
// userID -> contestantID -> entry.
type ContestSnapshot map[string]map[string]ScoreEntry

// Value returns the stored value for a criterion id or the overall key,
// along with whether it is present.
func (e ScoreEntry) Value(key string) (float64, bool) {
	if key == OverallKey {
		if e.Overall == nil {
			return 0, false
		}
		return *e.Overall, true
	}
	v, ok := e.Values[key]
	return v, ok
}

// Clone returns a deep copy, so snapshots handed to readers cannot alias the
// store's maps.
func (e ScoreEntry) Clone() ScoreEntry {
	out := e
	if e.Values != nil {
		out.Values = make(map[string]float64, len(e.Values))
		for k, v := range e.Values {
			out.Values[k] = v
		}
	}
	if e.Overall != nil {
		v := *e.Overall
		out.Overall = &v
	}
	return out
}

// The JSON form of a score entry is flat, criterion ids next to the voter
// metadata, matching the stored document shape.

func (e ScoreEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Values)+4)
	for id, v := range e.Values {
		out[id] = v
	}
	if e.Overall != nil {
		out[OverallKey] = *e.Overall
	}
	out["voterName"] = e.VoterName
	out["voterIsAdmin"] = e.VoterIsAdmin
	out["updatedAt"] = e.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

func (e *ScoreEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = ScoreEntry{Values: make(map[string]float64)}
	for key, v := range raw {
		switch key {
		case "voterName":
			if s, ok := v.(string); ok {
				e.VoterName = s
			}
		case "voterIsAdmin":
			if b, ok := v.(bool); ok {
				e.VoterIsAdmin = b
			}
		case "updatedAt":
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					e.UpdatedAt = t
				}
			}
		case OverallKey:
			if f, ok := v.(float64); ok {
				overall := f
				e.Overall = &overall
			}
		default:
			if f, ok := v.(float64); ok {
				e.Values[key] = f
			}
		}
	}
	return nil
}

// Recompute refreshes the derived overall field against the criteria set.
func (e *ScoreEntry) Recompute(criteria CriteriaSet) {
	if overall, ok := criteria.ComputeOverall(e.Values); ok {
		e.Overall = &overall
	} else {
		e.Overall = nil
	}
}
