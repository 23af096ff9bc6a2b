package model

// Skill is an entry in the read-only catalog users pick favorites from.
type Skill struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
