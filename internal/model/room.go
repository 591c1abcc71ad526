package model

import "time"

// Room is the ephemeral conversation unit. Connected holds the session
// tokens of admitted participants in admission order, capped at two.
// The store owns the room's TTL; Room itself carries no expiry state.
type Room struct {
	ID        string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	Connected []string  `json:"connected"`
}

// AdmitOutcome describes the result of an admission attempt.
type AdmitOutcome string

const (
	// AdmitNew means a fresh token was minted and appended.
	AdmitNew AdmitOutcome = "admitted"
	// AdmitMember means the presented token was already a member; no mutation.
	AdmitMember AdmitOutcome = "member"
	// AdmitFull means the room is at capacity.
	AdmitFull AdmitOutcome = "full"
	// AdmitNotFound means the room is absent or expired.
	AdmitNotFound AdmitOutcome = "not_found"
)
