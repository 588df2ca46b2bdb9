package domain

import "time"

// Token is the metadata carried by an issued session token.
type Token struct {
	ID        string
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
