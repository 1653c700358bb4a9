package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"omnidesk/internal/entities"
	"omnidesk/internal/interfaces"
)

// BlockedUnknownLanguage is the delivery outcome when the customer has never
// sent a message the detector could classify. An operator-language reply
// would be unintelligible to them, so no transport is tried.
const BlockedUnknownLanguage = "customer language is unknown, reply not sent"

// DispatchRequest describes one agent reply bound for a customer.
type DispatchRequest struct {
	Channel          entities.Channel
	Customer         *entities.Customer
	CustomerLanguage string
	Content          string
	Media            []entities.Media
	Subject          string
	InReplyTo        string
}

// DeliveryResult reports what happened on the wire. Attempted is false when
// no transport send was tried at all, whether the channel has no outbound
// path, the transport is not configured, or the send was blocked.
type DeliveryResult struct {
	Attempted     bool
	Sent          bool
	BlockedReason string
	Err           error
}

// Dispatcher translates agent replies into the customer's language and
// hands them to the channel's transport. It never touches storage: a reply
// is persisted before dispatch and delivery failures do not roll it back.
type Dispatcher struct {
	translator *TranslationService
	mail       interfaces.MailTransport
	chat       interfaces.ChatTransport
	fromName   string
	log        zerolog.Logger
}

func NewDispatcher(translator *TranslationService, mail interfaces.MailTransport, chat interfaces.ChatTransport, fromName string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		translator: translator,
		mail:       mail,
		chat:       chat,
		fromName:   fromName,
		log:        logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch runs the outbound state machine for one reply.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) DeliveryResult {
	switch req.Channel {
	case entities.ChannelEmail:
		if d.mail == nil || !d.mail.Configured() {
			d.log.Warn().Msg("mail transport not configured, reply stored only")
			return DeliveryResult{}
		}
	case entities.ChannelChat:
		if d.chat == nil || !d.chat.Configured() {
			d.log.Warn().Msg("chat transport not configured, reply stored only")
			return DeliveryResult{}
		}
	default:
		// Web conversations have no outbound transport. The reply is
		// visible once the customer widget polls the conversation.
		return DeliveryResult{}
	}

	if req.CustomerLanguage == "" || req.CustomerLanguage == entities.LanguageUnknown {
		d.log.Info().
			Str("channel", string(req.Channel)).
			Msg("customer language unknown, blocking outbound reply")
		return DeliveryResult{BlockedReason: BlockedUnknownLanguage}
	}

	outbound := d.translator.FromOperatorLanguage(ctx, req.Content, req.CustomerLanguage)

	var err error
	switch req.Channel {
	case entities.ChannelEmail:
		err = d.sendEmail(ctx, req, outbound)
	case entities.ChannelChat:
		err = d.sendChat(ctx, req, outbound)
	}
	if err != nil {
		d.log.Error().Err(err).
			Str("channel", string(req.Channel)).
			Str("customer_id", req.Customer.ID).
			Msg("outbound delivery failed")
		return DeliveryResult{Attempted: true, Err: err}
	}
	return DeliveryResult{Attempted: true, Sent: true}
}

func (d *Dispatcher) sendEmail(ctx context.Context, req DispatchRequest, outbound string) error {
	if req.Customer.Email == "" {
		return fmt.Errorf("customer has no email address")
	}
	body := fmt.Sprintf("Dear %s,\n\n%s\n\nBest regards,\n%s", req.Customer.Name, outbound, d.fromName)
	return d.mail.Send(ctx, interfaces.OutboundEmail{
		To:        req.Customer.Email,
		ToName:    req.Customer.Name,
		Subject:   replySubject(req.Subject),
		Body:      body,
		InReplyTo: req.InReplyTo,
		Media:     req.Media,
	})
}

func (d *Dispatcher) sendChat(ctx context.Context, req DispatchRequest, outbound string) error {
	if req.Customer.Phone == "" {
		return fmt.Errorf("customer has no phone number")
	}
	text := outbound
	media := req.Media
	if !d.chat.SupportsMedia() {
		// Text-only transport: attachments cannot ride along. A reply
		// that was nothing but attachments still needs a body.
		media = nil
		if strings.TrimSpace(text) == "" && len(req.Media) > 0 {
			text = entities.MediaPlaceholder
		}
	}
	_, err := d.chat.Send(ctx, req.Customer.Phone, text, media)
	return err
}

func replySubject(original string) string {
	if original == "" {
		return "Re: Your Message"
	}
	if strings.HasPrefix(original, "Re:") || strings.HasPrefix(original, "RE:") {
		return original
	}
	return "Re: " + original
}
