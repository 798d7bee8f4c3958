package model

// Message is a direct message between two users. Messages are created by
// send and never mutated or deleted client-side; ordering is whatever the
// server returns in the list response.
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
}
