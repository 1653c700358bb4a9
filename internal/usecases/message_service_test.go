package usecases

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnidesk/internal/entities"
	"omnidesk/internal/interfaces"
)

type memCustomerStore struct {
	mu   sync.Mutex
	byID map[string]*entities.Customer
}

func newMemCustomerStore() *memCustomerStore {
	return &memCustomerStore{byID: make(map[string]*entities.Customer)}
}

func (s *memCustomerStore) GetByID(ctx context.Context, id string) (*entities.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *memCustomerStore) UpsertByEmail(ctx context.Context, c *entities.Customer) (*entities.Customer, error) {
	return s.upsert(c, func(existing *entities.Customer) bool { return existing.Email == c.Email })
}

func (s *memCustomerStore) UpsertByPhone(ctx context.Context, c *entities.Customer) (*entities.Customer, error) {
	return s.upsert(c, func(existing *entities.Customer) bool { return existing.Phone == c.Phone })
}

func (s *memCustomerStore) upsert(c *entities.Customer, match func(*entities.Customer) bool) (*entities.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if match(existing) {
			cp := *existing
			return &cp, nil
		}
	}
	created := *c
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now()
	s.byID[created.ID] = &created
	cp := created
	return &cp, nil
}

func (s *memCustomerStore) UpdateName(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok {
		c.Name = name
	}
	return nil
}

type memConversationStore struct {
	mu   sync.Mutex
	byID map[string]*entities.Conversation
}

func newMemConversationStore() *memConversationStore {
	return &memConversationStore{byID: make(map[string]*entities.Conversation)}
}

func (s *memConversationStore) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *memConversationStore) FindOrCreate(ctx context.Context, customerID string, channel entities.Channel) (*entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.byID {
		if c.CustomerID == customerID && c.Channel == channel {
			cp := *c
			return &cp, nil
		}
	}
	created := &entities.Conversation{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Channel:    channel,
		IsRead:     true,
		CreatedAt:  time.Now(),
	}
	s.byID[created.ID] = created
	cp := *created
	return &cp, nil
}

func (s *memConversationStore) Touch(ctx context.Context, id, preview string, at time.Time, read bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok {
		c.LastMessage = preview
		c.LastMessageAt = &at
		c.IsRead = read
	}
	return nil
}

func (s *memConversationStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok {
		c.IsRead = true
	}
	return nil
}

func (s *memConversationStore) ListRecent(ctx context.Context, limit int) ([]entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Conversation, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, *c)
	}
	return out, nil
}

type memMessageStore struct {
	mu       sync.Mutex
	messages []entities.Message
}

func (s *memMessageStore) Append(ctx context.Context, m *entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.SentAt = time.Now()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *memMessageStore) ListByConversation(ctx context.Context, conversationID string, limit int) ([]entities.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMessageStore) LatestCustomerLanguage(ctx context.Context, conversationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.ConversationID == conversationID && m.Sender == entities.SenderCustomer {
			return m.OriginalLanguage, nil
		}
	}
	return "", nil
}

func (s *memMessageStore) LatestCustomerMessageID(ctx context.Context, conversationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.ConversationID == conversationID && m.Sender == entities.SenderCustomer {
			return m.ID, nil
		}
	}
	return "", nil
}

type pipelineFixture struct {
	service       *MessageService
	customers     *memCustomerStore
	conversations *memConversationStore
	messages      *memMessageStore
	classifier    *stubClassifier
	backend       *stubTranslator
	mail          *fakeMail
	chat          *fakeChat
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		customers:     newMemCustomerStore(),
		conversations: newMemConversationStore(),
		messages:      &memMessageStore{},
		classifier:    &stubClassifier{},
		backend:       &stubTranslator{},
		mail:          &fakeMail{configured: true},
		chat:          &fakeChat{configured: true},
	}

	logger := zerolog.Nop()
	translator := NewTranslationService(f.backend, "tr", time.Second, logger)
	f.service = NewMessageService(
		NewIdentityService(f.customers, f.conversations, logger),
		NewMediaService(newStubContentStore(), logger),
		NewLanguageService(f.classifier, logger),
		translator,
		NewDispatcher(translator, f.mail, f.chat, "Destek Ekibi", logger),
		f.customers,
		f.conversations,
		f.messages,
		logger,
	)
	return f
}

func (f *pipelineFixture) confident(code string) {
	f.classifier.candidates = []interfaces.LanguageCandidate{{Code: code, Probability: 0.97}}
}

func TestProcessInboundTranslatesAndStores(t *testing.T) {
	f := newPipelineFixture()
	f.confident("de")
	f.backend.result = "Siparişim hâlâ gelmedi"

	msg, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelEmail,
		Identity: Identity{Email: "hans@example.org"},
		Name:     "Hans Müller",
		Content:  "Meine Bestellung ist noch nicht angekommen",
	})
	require.NoError(t, err)

	assert.Equal(t, entities.SenderCustomer, msg.Sender)
	assert.Equal(t, "Meine Bestellung ist noch nicht angekommen", msg.OriginalContent)
	assert.Equal(t, "de", msg.OriginalLanguage)
	assert.Equal(t, "Siparişim hâlâ gelmedi", msg.Content)
	assert.Equal(t, "Siparişim hâlâ gelmedi", msg.TranslatedContent)
	assert.False(t, msg.IsRead)
	assert.False(t, msg.SentAt.IsZero())

	conv, err := f.conversations.GetByID(context.Background(), msg.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, entities.ChannelEmail, conv.Channel)
	assert.Equal(t, "Siparişim hâlâ gelmedi", conv.LastMessage)
	assert.False(t, conv.IsRead)

	customer, err := f.customers.GetByID(context.Background(), conv.CustomerID)
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, "Hans Müller", customer.Name)
	assert.Equal(t, "hans@example.org", customer.Email)
}

func TestProcessInboundReusesConversation(t *testing.T) {
	f := newPipelineFixture()
	f.confident("en")
	f.backend.result = "merhaba"

	first, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelChat,
		Identity: Identity{Phone: "905551112233"},
		Content:  "hello there my friend",
	})
	require.NoError(t, err)

	second, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelChat,
		Identity: Identity{Phone: "905551112233"},
		Content:  "are you still there",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Len(t, f.customers.byID, 1)
	assert.Len(t, f.conversations.byID, 1)
	assert.Len(t, f.messages.messages, 2)
}

// Two simultaneous first contacts from the same address must converge on a
// single customer and a single conversation.
func TestProcessInboundConcurrentFirstContact(t *testing.T) {
	f := newPipelineFixture()
	f.confident("en")
	f.backend.result = "merhaba"

	contents := []string{"hello there my friend", "is anyone reading this"}
	msgs := make([]*entities.Message, len(contents))
	errs := make([]error, len(contents))

	var wg sync.WaitGroup
	for i, content := range contents {
		wg.Add(1)
		go func(i int, content string) {
			defer wg.Done()
			msgs[i], errs[i] = f.service.ProcessInbound(context.Background(), InboundMessage{
				Channel:  entities.ChannelEmail,
				Identity: Identity{Email: "hans@example.org"},
				Content:  content,
			})
		}(i, content)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, msgs[0].ConversationID, msgs[1].ConversationID)
	assert.Len(t, f.customers.byID, 1)
	assert.Len(t, f.conversations.byID, 1)
	assert.Len(t, f.messages.messages, 2)
}

func TestProcessInboundChatPlaceholderIdentity(t *testing.T) {
	f := newPipelineFixture()
	f.confident("en")
	f.backend.result = "merhaba"

	msg, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelChat,
		Identity: Identity{Phone: "905551112233"},
		Content:  "hello from the gateway",
	})
	require.NoError(t, err)

	conv, _ := f.conversations.GetByID(context.Background(), msg.ConversationID)
	customer, _ := f.customers.GetByID(context.Background(), conv.CustomerID)
	require.NotNil(t, customer)
	assert.Equal(t, "Chat 905551112233", customer.Name)
	assert.Equal(t, "905551112233@chat.placeholder", customer.Email)
}

func TestProcessInboundUpgradesPlaceholderName(t *testing.T) {
	f := newPipelineFixture()
	f.confident("en")
	f.backend.result = "merhaba"

	first, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelChat,
		Identity: Identity{Phone: "905551112233"},
		Content:  "hello from the gateway",
	})
	require.NoError(t, err)

	_, err = f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelChat,
		Identity: Identity{Phone: "905551112233"},
		Name:     "Jane Doe",
		Content:  "it is me again today",
	})
	require.NoError(t, err)

	conv, _ := f.conversations.GetByID(context.Background(), first.ConversationID)
	customer, _ := f.customers.GetByID(context.Background(), conv.CustomerID)
	assert.Equal(t, "Jane Doe", customer.Name)
}

func TestProcessInboundMediaOnly(t *testing.T) {
	f := newPipelineFixture()

	msg, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelWeb,
		Identity: Identity{Email: "jane@example.org"},
		Media:    []MediaInput{{URL: "https://files.example.com/receipt.png", Name: "receipt.png"}},
	})
	require.NoError(t, err)

	assert.Equal(t, entities.MediaPlaceholder, msg.OriginalContent)
	assert.Equal(t, entities.LanguageUnknown, msg.OriginalLanguage)
	require.Len(t, msg.Media, 1)
	assert.Equal(t, "receipt.png", msg.Media[0].Name)
}

func TestProcessInboundRejectsEmpty(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelEmail,
		Identity: Identity{Email: "hans@example.org"},
		Content:  "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestProcessInboundPreviewTruncation(t *testing.T) {
	f := newPipelineFixture()
	f.confident("en")
	long := strings.Repeat("ş", 2*entities.PreviewLength)
	f.backend.result = long

	msg, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelEmail,
		Identity: Identity{Email: "hans@example.org"},
		Content:  "please repeat letters for me",
	})
	require.NoError(t, err)

	conv, _ := f.conversations.GetByID(context.Background(), msg.ConversationID)
	assert.Equal(t, entities.PreviewLength, len([]rune(conv.LastMessage)))
}

func TestSendAgentReplyBlockedOnUnknownLanguage(t *testing.T) {
	f := newPipelineFixture()
	// The classifier cannot make up its mind about this one.
	f.classifier.candidates = []interfaces.LanguageCandidate{
		{Code: "en", Probability: 0.48},
		{Code: "de", Probability: 0.45},
	}

	inbound, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelEmail,
		Identity: Identity{Email: "hans@example.org"},
		Content:  "zxqw, ptkf?!",
	})
	require.NoError(t, err)
	require.Equal(t, entities.LanguageUnknown, inbound.OriginalLanguage)

	msg, result, err := f.service.SendAgentReply(context.Background(), inbound.ConversationID, "Merhaba, size nasıl yardımcı olabilirim?", nil)
	require.NoError(t, err)

	// The reply is persisted even though nothing left the system.
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, BlockedUnknownLanguage, result.BlockedReason)
	assert.False(t, result.Attempted)
	assert.Empty(t, f.mail.sent)

	conv, _ := f.conversations.GetByID(context.Background(), inbound.ConversationID)
	assert.True(t, conv.IsRead)
	assert.Equal(t, "Merhaba, size nasıl yardımcı olabilirim?", conv.LastMessage)
}

func TestSendAgentReplyDispatchesTranslatedEmail(t *testing.T) {
	f := newPipelineFixture()
	f.confident("de")
	f.backend.result = "Siparişim gelmedi"

	inbound, err := f.service.ProcessInbound(context.Background(), InboundMessage{
		Channel:  entities.ChannelEmail,
		Identity: Identity{Email: "hans@example.org"},
		Name:     "Hans Müller",
		Content:  "Meine Bestellung ist noch nicht angekommen",
	})
	require.NoError(t, err)

	f.backend.result = "Ihre Bestellung ist unterwegs"
	msg, result, err := f.service.SendAgentReply(context.Background(), inbound.ConversationID, "Siparişiniz yolda", nil)
	require.NoError(t, err)

	assert.True(t, result.Attempted)
	assert.True(t, result.Sent)
	assert.Equal(t, entities.SenderAgent, msg.Sender)
	assert.Equal(t, "tr", msg.OriginalLanguage)
	assert.Equal(t, "Siparişiniz yolda", msg.Content)

	require.Len(t, f.mail.sent, 1)
	sent := f.mail.sent[0]
	assert.Equal(t, "hans@example.org", sent.To)
	assert.Equal(t, inbound.ID, sent.InReplyTo)
	assert.Contains(t, sent.Body, "Ihre Bestellung ist unterwegs")
}

func TestSendAgentReplyUnknownConversation(t *testing.T) {
	f := newPipelineFixture()

	_, _, err := f.service.SendAgentReply(context.Background(), "missing", "merhaba", nil)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
