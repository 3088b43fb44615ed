package models

// Contestant belongs to exactly one contest. The id only has to be unique
// within its contest, and the scoring layer always treats it as a string:
// seed data that declares numeric ids is normalized on the way in so that 3
// and "3" index the same score entry.
type Contestant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Order   int    `json:"order,omitempty"`
}

// Contest maps an id to its contestant list and voting state. Closed gates
// whether regular votes are accepted; admins may still correct entries.
type Contest struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Closed      bool         `json:"closed"`
	Contestants []Contestant `json:"contestants,omitempty"`
}

// Contestant returns the contestant with the given id, or nil.
func (c *Contest) Contestant(id string) *Contestant {
	for i := range c.Contestants {
		if c.Contestants[i].ID == id {
			return &c.Contestants[i]
		}
	}
	return nil
}
