package model

import "time"

// Item is a single uploaded file plus its metadata.
//
// Filename is the stored name relative to the owner's storage root — the
// backing file lives at <owner.StorageRoot>/<Filename>. The file and the
// record share one lifecycle: the file exists exactly as long as the record
// does.
//
// Shared controls visibility to everyone other than the owner. A shared
// item can be viewed and downloaded by anyone (even anonymously); a private
// one only by its owner.
type Item struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	Filename  string    `json:"filename"  db:"filename"`
	Shared    bool      `json:"shared"    db:"shared"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
