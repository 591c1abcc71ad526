package model

// Message is one entry of a room's append-only log. Text is an opaque
// ciphertext blob; the server never holds a key that could open it.
//
// AuthorToken is the session token that posted the message. It is stored
// with the entry but must only ever be revealed to a reader presenting
// that same token; everyone else sees the field omitted.
type Message struct {
	ID          string `json:"id"`
	Sender      string `json:"sender"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp"`
	RoomID      string `json:"roomId"`
	AuthorToken string `json:"token,omitempty"`
}

// ForReader returns a copy safe to hand to the caller identified by
// callerToken: the author token survives only when it is the caller's own.
func (m Message) ForReader(callerToken string) Message {
	if m.AuthorToken != callerToken {
		m.AuthorToken = ""
	}
	return m
}
