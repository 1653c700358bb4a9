package entities

import "time"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
	ChannelWeb   Channel = "web"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelWeb:
		return true
	}
	return false
}

// Conversation is the single open thread for a (customer, channel) pair.
// All messages on that channel for that customer append to it.
type Conversation struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customer_id"`
	Channel       Channel    `json:"channel"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at"`
	IsRead        bool       `json:"is_read"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PreviewLength bounds the last_message preview stored on a conversation.
const PreviewLength = 200
