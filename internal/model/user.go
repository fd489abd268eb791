// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// WHY A SEPARATE Salt WHEN BCRYPT ALREADY SALTS?
// PasswordHash is a bcrypt hash and carries its own embedded salt — we never
// need a second salt to verify passwords. Salt here is a different thing: a
// random per-user secret baked into issued session tokens. Changing the
// password regenerates it, which invalidates every outstanding token for
// that user (including long-lived remember-me tokens) without keeping any
// server-side session state.
//
// StorageRoot is the absolute path of the user's private upload directory.
// It is derived deterministically from the email and created synchronously
// when the account is created, so "user exists" and "directory exists" are
// never observably out of sync.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"` // never serialized
	Salt         string    `json:"-"         db:"salt"`          // token-invalidation secret
	StorageRoot  string    `json:"-"         db:"storage_root"`  // server-local path, not for clients
	Admin        bool      `json:"admin"     db:"admin"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
