// Package model defines the data structures used throughout the application.
package model

// User represents a registered account.
//
// PasswordHash is the bcrypt hash; it is tagged json:"-" so it can never
// leak through an API response, even by accident.
//
// GitHubID is set only for accounts created through GitHub sign-in. Those
// accounts have an empty PasswordHash and cannot log in with a password.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	GitHubID     *int64 `json:"-"`
}
