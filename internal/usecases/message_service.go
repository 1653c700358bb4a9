package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"omnidesk/internal/entities"
	"omnidesk/internal/interfaces"
)

var (
	ErrEmptyMessage         = errors.New("message has no content and no media")
	ErrConversationNotFound = errors.New("conversation not found")
)

// InboundMessage is a channel-normalized customer message, after the
// channel handler has mapped its payload onto the common shape.
type InboundMessage struct {
	Channel  entities.Channel
	Identity Identity
	Name     string
	Content  string
	Media    []MediaInput
}

// MessageService owns the two message pipelines: inbound customer messages
// and outbound agent replies. Everything channel-specific stays in the
// handlers and transports on either side of it.
type MessageService struct {
	identity      *IdentityService
	media         *MediaService
	language      *LanguageService
	translator    *TranslationService
	dispatcher    *Dispatcher
	customers     interfaces.CustomerStore
	conversations interfaces.ConversationStore
	messages      interfaces.MessageStore
	log           zerolog.Logger
}

func NewMessageService(
	identity *IdentityService,
	media *MediaService,
	language *LanguageService,
	translator *TranslationService,
	dispatcher *Dispatcher,
	customers interfaces.CustomerStore,
	conversations interfaces.ConversationStore,
	messages interfaces.MessageStore,
	logger zerolog.Logger,
) *MessageService {
	return &MessageService{
		identity:      identity,
		media:         media,
		language:      language,
		translator:    translator,
		dispatcher:    dispatcher,
		customers:     customers,
		conversations: conversations,
		messages:      messages,
		log:           logger.With().Str("component", "messages").Logger(),
	}
}

// ProcessInbound runs the full inbound pipeline: resolve the identity to a
// customer and conversation, normalize attachments, detect the language,
// translate into the operator language, persist, and bump the conversation
// preview to unread.
func (s *MessageService) ProcessInbound(ctx context.Context, in InboundMessage) (*entities.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Media) == 0 {
		return nil, ErrEmptyMessage
	}

	customer, conversation, err := s.identity.Resolve(ctx, in.Channel, in.Identity, strings.TrimSpace(in.Name))
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	media := s.media.Normalize(ctx, conversation.ID, in.Media)
	if content == "" {
		content = entities.MediaPlaceholder
	}

	lang := s.language.Detect(content)
	translated := s.translator.ToOperatorLanguage(ctx, content, lang)

	message := &entities.Message{
		ConversationID:    conversation.ID,
		Sender:            entities.SenderCustomer,
		Content:           translated,
		OriginalContent:   content,
		OriginalLanguage:  lang,
		TranslatedContent: translated,
		IsRead:            false,
		Media:             media,
	}
	if err := s.messages.Append(ctx, message); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if err := s.conversations.Touch(ctx, conversation.ID, preview(translated), message.SentAt, false); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conversation.ID).Msg("conversation preview update failed")
	}

	s.log.Info().
		Str("channel", string(in.Channel)).
		Str("customer_id", customer.ID).
		Str("conversation_id", conversation.ID).
		Str("language", lang).
		Msg("inbound message stored")
	return message, nil
}

// SendAgentReply stores an agent reply in the operator language and then
// dispatches a translated copy to the customer. The reply is persisted
// before any delivery attempt and stays persisted whatever delivery does.
func (s *MessageService) SendAgentReply(ctx context.Context, conversationID, content string, mediaIn []MediaInput) (*entities.Message, DeliveryResult, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(mediaIn) == 0 {
		return nil, DeliveryResult{}, ErrEmptyMessage
	}

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, DeliveryResult{}, fmt.Errorf("load conversation: %w", err)
	}
	if conversation == nil {
		return nil, DeliveryResult{}, ErrConversationNotFound
	}
	customer, err := s.customers.GetByID(ctx, conversation.CustomerID)
	if err != nil {
		return nil, DeliveryResult{}, fmt.Errorf("load customer: %w", err)
	}
	if customer == nil {
		return nil, DeliveryResult{}, fmt.Errorf("customer %s not found", conversation.CustomerID)
	}

	media := s.media.Normalize(ctx, conversation.ID, mediaIn)
	if content == "" {
		content = entities.MediaPlaceholder
	}

	operatorLang := s.translator.OperatorLanguage()
	message := &entities.Message{
		ConversationID:    conversation.ID,
		Sender:            entities.SenderAgent,
		Content:           content,
		OriginalContent:   content,
		OriginalLanguage:  operatorLang,
		TranslatedContent: content,
		IsRead:            true,
		Media:             media,
	}
	if err := s.messages.Append(ctx, message); err != nil {
		return nil, DeliveryResult{}, fmt.Errorf("persist message: %w", err)
	}

	customerLang, err := s.messages.LatestCustomerLanguage(ctx, conversation.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conversation.ID).Msg("customer language lookup failed")
	}
	inReplyTo := ""
	if conversation.Channel == entities.ChannelEmail {
		inReplyTo, err = s.messages.LatestCustomerMessageID(ctx, conversation.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("conversation_id", conversation.ID).Msg("threading lookup failed")
		}
	}

	result := s.dispatcher.Dispatch(ctx, DispatchRequest{
		Channel:          conversation.Channel,
		Customer:         customer,
		CustomerLanguage: customerLang,
		Content:          content,
		Media:            media,
		InReplyTo:        inReplyTo,
	})

	if err := s.conversations.Touch(ctx, conversation.ID, preview(content), message.SentAt, true); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conversation.ID).Msg("conversation preview update failed")
	}

	return message, result, nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= entities.PreviewLength {
		return content
	}
	return string(runes[:entities.PreviewLength])
}
