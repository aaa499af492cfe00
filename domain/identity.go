package domain

import "time"

// Identity is what the auth verifier vouches for at handshake time.
type Identity struct {
	UserID    UserID
	ExpiresAt time.Time
}
