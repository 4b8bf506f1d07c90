package model

import "time"

// TokenData contains the data stored with a session token.
type TokenData struct {
	Account   string    `json:"account"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
