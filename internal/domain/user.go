package domain

import "time"

// User is a registered account holder. Users are immutable once created and
// are never deleted.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}
