package usecases

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"omnidesk/internal/entities"
	"omnidesk/internal/interfaces"
)

// Identity carries whatever contact coordinates a channel payload exposed.
// Each channel keys on one of them; the other is stored when present.
type Identity struct {
	Email string
	Phone string
}

// IdentityService maps channel identities onto customers and their
// per-channel conversations. Both lookups are insert-or-fetch, so two
// concurrent inbound messages for the same identity converge on one row.
type IdentityService struct {
	customers     interfaces.CustomerStore
	conversations interfaces.ConversationStore
	log           zerolog.Logger
}

func NewIdentityService(customers interfaces.CustomerStore, conversations interfaces.ConversationStore, logger zerolog.Logger) *IdentityService {
	return &IdentityService{
		customers:     customers,
		conversations: conversations,
		log:           logger.With().Str("component", "identity").Logger(),
	}
}

// Resolve returns the customer behind an identity and the conversation for
// the given channel, creating either when this is a first contact. A real
// display name upgrades a placeholder one, never the reverse.
func (s *IdentityService) Resolve(ctx context.Context, channel entities.Channel, id Identity, name string) (*entities.Customer, *entities.Conversation, error) {
	customer, err := s.resolveCustomer(ctx, channel, id, name)
	if err != nil {
		return nil, nil, err
	}

	conversation, err := s.conversations.FindOrCreate(ctx, customer.ID, channel)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve conversation: %w", err)
	}

	if name != "" && customer.HasPlaceholderName() && customer.Name != name {
		if err := s.customers.UpdateName(ctx, customer.ID, name); err != nil {
			s.log.Warn().Err(err).Str("customer_id", customer.ID).Msg("name upgrade failed")
		} else {
			customer.Name = name
		}
	}

	return customer, conversation, nil
}

func (s *IdentityService) resolveCustomer(ctx context.Context, channel entities.Channel, id Identity, name string) (*entities.Customer, error) {
	switch channel {
	case entities.ChannelChat:
		if id.Phone == "" {
			return nil, fmt.Errorf("chat identity requires a phone number")
		}
		return s.byPhone(ctx, channel, id, name)
	case entities.ChannelEmail:
		if id.Email == "" {
			return nil, fmt.Errorf("email identity requires an address")
		}
		return s.byEmail(ctx, channel, id, name)
	case entities.ChannelWeb:
		if id.Email != "" {
			return s.byEmail(ctx, channel, id, name)
		}
		if id.Phone != "" {
			return s.byPhone(ctx, channel, id, name)
		}
		return nil, fmt.Errorf("web identity requires an email or phone")
	default:
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
}

func (s *IdentityService) byEmail(ctx context.Context, channel entities.Channel, id Identity, name string) (*entities.Customer, error) {
	if name == "" {
		name = entities.PlaceholderName(channel, id.Email)
	}
	customer, err := s.customers.UpsertByEmail(ctx, &entities.Customer{
		Name:  name,
		Email: id.Email,
		Phone: id.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve customer by email: %w", err)
	}
	return customer, nil
}

func (s *IdentityService) byPhone(ctx context.Context, channel entities.Channel, id Identity, name string) (*entities.Customer, error) {
	if name == "" {
		name = entities.PlaceholderName(channel, id.Phone)
	}
	email := id.Email
	if email == "" {
		email = entities.PlaceholderEmail(id.Phone)
	}
	customer, err := s.customers.UpsertByPhone(ctx, &entities.Customer{
		Name:  name,
		Email: email,
		Phone: id.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve customer by phone: %w", err)
	}
	return customer, nil
}
