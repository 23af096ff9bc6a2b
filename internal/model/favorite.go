package model

// Favorite records that a user favorited a skill.
// The pair (UserID, SkillID) is unique; the storage layer enforces it.
type Favorite struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	SkillID string `json:"skill_id"`
}
