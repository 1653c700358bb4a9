package entities

import "time"

type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderAgent    Sender = "agent"
)

// LanguageUnknown is the first-class "could not classify" outcome. It is
// not an error: it disables translation and gates outbound sends.
const LanguageUnknown = "unknown"

// MediaPlaceholder is stored as display content when a message carries
// attachments but no text, and sent when a text-only transport receives a
// media-only reply.
const MediaPlaceholder = "Media"

// Media is a normalized attachment reference, attached by value to a
// message. References are immutable once normalized.
type Media struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
}

// Message is immutable once written. Content is always the
// operator-language rendering, even when translation failed (falls back to
// the original text); the display field is never empty. For agent messages
// Content, OriginalContent and TranslatedContent are identical and
// OriginalLanguage is the operator's own language.
type Message struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	Sender            Sender    `json:"sender"`
	Content           string    `json:"content"`
	OriginalContent   string    `json:"original_content"`
	OriginalLanguage  string    `json:"original_language"`
	TranslatedContent string    `json:"translated_content"`
	IsRead            bool      `json:"is_read"`
	Media             []Media   `json:"media,omitempty"`
	SentAt            time.Time `json:"sent_at"`
}
