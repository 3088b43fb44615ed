package models

// User is created on first login. The name doubles as the de-duplication
// key: logging in with an existing name reattaches to that user's id instead
// of creating a duplicate record.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}
