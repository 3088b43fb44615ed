package models

// Session is the persisted "who am I / what am I voting on" pair. It lives
// in the local key-value store, separate from the contest dataset, so a
// reload restores the session even before (or without) the dataset loading.
type Session struct {
	CurrentUser     User   `json:"currentUser"`
	ActiveContestID string `json:"activeContestId"`
}
