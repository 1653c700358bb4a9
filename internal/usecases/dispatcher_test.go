package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnidesk/internal/entities"
	"omnidesk/internal/interfaces"
)

type fakeMail struct {
	configured bool
	err        error
	sent       []interfaces.OutboundEmail
}

func (f *fakeMail) Configured() bool { return f.configured }

func (f *fakeMail) Send(ctx context.Context, msg interfaces.OutboundEmail) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeChat struct {
	configured    bool
	supportsMedia bool
	err           error
	sentText      []string
	sentMedia     [][]entities.Media
}

func (f *fakeChat) Configured() bool    { return f.configured }
func (f *fakeChat) SupportsMedia() bool { return f.supportsMedia }

func (f *fakeChat) Send(ctx context.Context, phone, text string, media []entities.Media) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sentText = append(f.sentText, text)
	f.sentMedia = append(f.sentMedia, media)
	return "gw-msg-1", nil
}

func newTestDispatcher(mail *fakeMail, chat *fakeChat, backend *stubTranslator) *Dispatcher {
	translator := NewTranslationService(backend, "tr", time.Second, zerolog.Nop())
	return NewDispatcher(translator, mail, chat, "Destek Ekibi", zerolog.Nop())
}

func emailCustomer() *entities.Customer {
	return &entities.Customer{ID: "cust-1", Name: "Hans Müller", Email: "hans@example.org"}
}

func TestDispatchBlockedOnUnknownLanguage(t *testing.T) {
	mail := &fakeMail{configured: true}
	d := newTestDispatcher(mail, &fakeChat{configured: true}, &stubTranslator{})

	result := d.Dispatch(context.Background(), DispatchRequest{
		Channel:          entities.ChannelEmail,
		Customer:         emailCustomer(),
		CustomerLanguage: entities.LanguageUnknown,
		Content:          "Siparişiniz hazır",
	})

	assert.False(t, result.Attempted)
	assert.False(t, result.Sent)
	assert.Equal(t, BlockedUnknownLanguage, result.BlockedReason)
	assert.Empty(t, mail.sent)
}

func TestDispatchEmailTranslatedReply(t *testing.T) {
	mail := &fakeMail{configured: true}
	backend := &stubTranslator{result: "Ihre Bestellung ist bereit"}
	d := newTestDispatcher(mail, &fakeChat{}, backend)

	result := d.Dispatch(context.Background(), DispatchRequest{
		Channel:          entities.ChannelEmail,
		Customer:         emailCustomer(),
		CustomerLanguage: "de",
		Content:          "Siparişiniz hazır",
		Subject:          "Bestellung 42",
		InReplyTo:        "msg-99",
	})

	assert.True(t, result.Attempted)
	assert.True(t, result.Sent)
	require.Len(t, mail.sent, 1)
	sent := mail.sent[0]
	assert.Equal(t, "hans@example.org", sent.To)
	assert.Equal(t, "Re: Bestellung 42", sent.Subject)
	assert.Equal(t, "msg-99", sent.InReplyTo)
	assert.Contains(t, sent.Body, "Dear Hans Müller,")
	assert.Contains(t, sent.Body, "Ihre Bestellung ist bereit")
	assert.Contains(t, sent.Body, "Best regards,\nDestek Ekibi")
}

func TestDispatchEmailKeepsExistingReplyPrefix(t *testing.T) {
	mail := &fakeMail{configured: true}
	d := newTestDispatcher(mail, &fakeChat{}, &stubTranslator{result: "x"})

	d.Dispatch(context.Background(), DispatchRequest{
		Channel:          entities.ChannelEmail,
		Customer:         emailCustomer(),
		CustomerLanguage: "en",
		Content:          "merhaba",
		Subject:          "Re: Bestellung 42",
	})

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "Re: Bestellung 42", mail.sent[0].Subject)
}

func TestDispatchEmailDefaultSubject(t *testing.T) {
	mail := &fakeMail{configured: true}
	d := newTestDispatcher(mail, &fakeChat{}, &stubTranslator{result: "x"})

	d.Dispatch(context.Background(), DispatchRequest{
		Channel:          entities.ChannelEmail,
		Customer:         emailCustomer(),
		CustomerLanguage: "en",
		Content:          "merhaba",
	})

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "Re: Your Message", mail.sent[0].Subject)
}

func TestDispatchUnconfiguredTransportStoresOnly(t *testing.T) {
	d := newTestDispatcher(&fakeMail{configured: false}, &fakeChat{configured: false}, &stubTranslator{})

	result := d.Dispatch(context.Background(), DispatchRequest{
		Channel:          entities.ChannelEmail,
		Customer:         emailCustomer(),
		CustomerLanguage: "de",
		Content:          "merhaba",
	})

	assert.False(t, result.Attempted)
	assert.Empty(t, result.BlockedReason)
	assert.NoError(t, result.Err)
}

func TestDispatchWebChannelHasNoTransport(t *testing.T) {
	d := newTestDispatcher(&fakeMail{configured: true}, &fakeChat{configured: true}, &stubTranslator{})

	result := d.Dispatch(context.Background(), DispatchRequest{
		Channel:          entities.ChannelWeb,
		Customer:         emailCustomer(),
		CustomerLanguage: "en",
		Content:          "merhaba",
	})

	assert.False(t, result.Attempted)
	assert.False(t, result.Sent)
}

func TestDispatchChatMediaOnlyOnTextTransport(t *testing.T) {
	chat := &fakeChat{configured: true, supportsMedia: false}
	d := newTestDispatcher(&fakeMail{}, chat, &stubTranslator{result: "should not matter"})

	customer := &entities.Customer{ID: "cust-2", Name: "Chat 905551112233", Phone: "905551112233"}
	result := d.Dispatch(context.Background(), DispatchRequest{
		Channel:          entities.ChannelChat,
		Customer:         customer,
		CustomerLanguage: "en",
		Content:          "",
		Media:            []entities.Media{{URL: "https://cdn.example.com/a.png"}},
	})

	assert.True(t, result.Sent)
	require.Len(t, chat.sentText, 1)
	assert.Equal(t, entities.MediaPlaceholder, chat.sentText[0])
	assert.Nil(t, chat.sentMedia[0])
}

func TestDispatchTransportFailure(t *testing.T) {
	chat := &fakeChat{configured: true, err: errors.New("gateway offline")}
	d := newTestDispatcher(&fakeMail{}, chat, &stubTranslator{result: "hi"})

	customer := &entities.Customer{ID: "cust-3", Name: "Chat 905551112233", Phone: "905551112233"}
	result := d.Dispatch(context.Background(), DispatchRequest{
		Channel:          entities.ChannelChat,
		Customer:         customer,
		CustomerLanguage: "en",
		Content:          "merhaba",
	})

	assert.True(t, result.Attempted)
	assert.False(t, result.Sent)
	assert.Error(t, result.Err)
}
