package interfaces

import (
	"context"
	"time"

	"omnidesk/internal/entities"
)

// LanguageCandidate is one ranked guess from the language classifier.
type LanguageCandidate struct {
	Code        string // ISO-639-1
	Probability float64
}

// LanguageClassifier returns ranked candidates for a text, best first.
// Thresholding is the caller's concern, not the classifier's.
type LanguageClassifier interface {
	Classify(text string) []LanguageCandidate
}

// TranslationBackend is the raw external translation dependency. It may
// fail; the fallback contract lives in the service wrapping it.
type TranslationBackend interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// OutboundEmail is one mail delivery. Media references are downloaded and
// attached by the transport.
type OutboundEmail struct {
	To        string
	ToName    string
	Subject   string
	Body      string
	ReplyTo   string
	InReplyTo string
	Media     []entities.Media
}

type MailTransport interface {
	Send(ctx context.Context, msg OutboundEmail) error
	Configured() bool
}

// ChatTransport delivers to the phone-keyed chat gateway. Send returns the
// provider message id on success.
type ChatTransport interface {
	Send(ctx context.Context, phone, text string, media []entities.Media) (string, error)
	SupportsMedia() bool
	Configured() bool
}

// ContentStore accepts a binary payload and returns a publicly resolvable URL.
type ContentStore interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// CustomerStore is the customer table. Upserts are insert-or-fetch keyed on
// the identity column: two concurrent calls for the same new identity must
// both return the single row the store's uniqueness guarantee kept.
type CustomerStore interface {
	GetByID(ctx context.Context, id string) (*entities.Customer, error)
	UpsertByEmail(ctx context.Context, c *entities.Customer) (*entities.Customer, error)
	UpsertByPhone(ctx context.Context, c *entities.Customer) (*entities.Customer, error)
	UpdateName(ctx context.Context, id, name string) error
}

// ConversationStore maintains at most one conversation per (customer, channel).
type ConversationStore interface {
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)
	FindOrCreate(ctx context.Context, customerID string, channel entities.Channel) (*entities.Conversation, error)
	Touch(ctx context.Context, id, preview string, at time.Time, read bool) error
	ListRecent(ctx context.Context, limit int) ([]entities.Conversation, error)
	MarkRead(ctx context.Context, id string) error
}

// MessageStore is the append-only message ledger.
type MessageStore interface {
	Append(ctx context.Context, m *entities.Message) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]entities.Message, error)
	LatestCustomerLanguage(ctx context.Context, conversationID string) (string, error)
	LatestCustomerMessageID(ctx context.Context, conversationID string) (string, error)
}
