// Package models - user.go defines the User model for registry accounts, their
// public profile projection, and the id canonicalization helper shared by all
// entity identifiers.
package models

import (
	"strings"
	"time"
)

// CanonicalID lowercases an entity identifier. userId, organisationId, and
// articleId are case-insensitive and stored lowercase; every lookup must pass
// through this before hitting the database.
func CanonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Socials holds a user's public social links
type Socials struct {
	X        string `json:"x"`
	LinkedIn string `json:"linkedIn"`
	Website  string `json:"website"`
}

// User represents a registry account
type User struct {
	UserID          string    `json:"userId"`
	PasswordHash    string    `json:"-"`
	MFAKey          string    `json:"-"`
	IsTopLevelAdmin bool      `json:"isTopLevelAdmin"`
	Username        string    `json:"username"`
	ProfilePicture  string    `json:"profilePicture"`
	Socials         Socials   `json:"socials"`
	Attachments     []string  `json:"attachments"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Profile is the public projection of a user used in directories and article
// author/editor listings. It never carries credential material.
type Profile struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
}

// Profile returns the public projection of the user
func (u *User) Profile() Profile {
	return Profile{
		UserID:         u.UserID,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
	}
}
