package entities

import (
	"strings"
	"time"
)

// Customer is keyed by exactly one canonical identity per channel family:
// email address for email/web contacts, phone number for chat contacts.
// A phone-only contact gets a placeholder email until a real one is observed.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// PlaceholderName builds the channel-derived name used when a contact
// arrives without a display name, e.g. "Chat 905551234567".
func PlaceholderName(channel Channel, identity string) string {
	c := string(channel)
	if c == "" {
		return identity
	}
	return strings.ToUpper(c[:1]) + c[1:] + " " + identity
}

// HasPlaceholderName reports whether the stored name is a generated
// placeholder that may be upgraded once a real name becomes available.
func (c *Customer) HasPlaceholderName() bool {
	for _, ch := range []Channel{ChannelEmail, ChannelChat, ChannelWeb} {
		prefix := PlaceholderName(ch, "")
		if strings.HasPrefix(c.Name, prefix) {
			return true
		}
	}
	return c.Name == "" || c.Name == "Unknown Customer"
}

// PlaceholderEmail is assigned to phone-only contacts so the email
// uniqueness constraint still holds for them.
func PlaceholderEmail(phone string) string {
	return phone + "@chat.placeholder"
}
