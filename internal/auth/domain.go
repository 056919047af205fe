// Package auth is a thin identity collaborator: it verifies credentials
// and hands the core an explicit shared.Identity. The core packages
// never see sessions or tokens.
package auth

import "time"

// User represents a registered customer.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
