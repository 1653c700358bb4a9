package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"omnidesk/internal/entities"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// WhatsAppClient is the chat gateway transport. One shared gateway line per
// deployment; the session is persisted in SQLite via whatsmeow's sqlstore.
type WhatsAppClient struct {
	Client      *whatsmeow.Client
	HandlerFunc func(evt interface{})

	sendTimeout time.Duration
	log         zerolog.Logger

	qrCode string
	qrLock sync.RWMutex
}

func NewWhatsAppClient(dbPath string, sendTimeout time.Duration, logger zerolog.Logger) (*WhatsAppClient, error) {
	dbLog := waLog.Stdout("Database", "ERROR", true)
	container, err := sqlstore.New(context.Background(), "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %v", err)
	}

	clientLog := waLog.Stdout("Client", "ERROR", true)
	client := whatsmeow.NewClient(deviceStore, clientLog)

	return &WhatsAppClient{
		Client:      client,
		sendTimeout: sendTimeout,
		log:         logger.With().Str("component", "chat-gateway").Logger(),
	}, nil
}

func (w *WhatsAppClient) Connect() error {
	if w.Client.Store.ID == nil {
		// No ID stored, new login
		qrChan, _ := w.Client.GetQRChannel(context.Background())
		err := w.Client.Connect()
		if err != nil {
			return err
		}

		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					w.qrLock.Lock()
					w.qrCode = evt.Code
					w.qrLock.Unlock()
					w.log.Info().Msg("gateway QR code updated")
				} else {
					w.log.Info().Str("event", evt.Event).Msg("gateway login event")
				}
			}
		}()
	} else {
		err := w.Client.Connect()
		if err != nil {
			return err
		}
		w.log.Info().Msg("chat gateway connected (existing session)")
	}
	return nil
}

func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected() && w.Client.Store.ID != nil
}

// GetPhoneNumber returns the connected gateway phone number.
func (w *WhatsAppClient) GetPhoneNumber() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.ID.User
}

func (w *WhatsAppClient) Logout() error {
	w.qrLock.Lock()
	w.qrCode = ""
	w.qrLock.Unlock()

	err := w.Client.Logout(context.Background())
	if err != nil {
		return err
	}

	w.Client.Disconnect()

	qrChan, _ := w.Client.GetQRChannel(context.Background())
	err = w.Client.Connect()
	if err != nil {
		w.log.Error().Err(err).Msg("failed to reconnect after logout")
		return err
	}

	go func() {
		for evt := range qrChan {
			if evt.Event == "code" {
				w.qrLock.Lock()
				w.qrCode = evt.Code
				w.qrLock.Unlock()
				w.log.Info().Msg("new gateway QR code generated")
			}
		}
	}()

	return nil
}

func (w *WhatsAppClient) Disconnect() {
	w.Client.Disconnect()
}

func (w *WhatsAppClient) AddHandler(handler func(interface{})) {
	w.Client.AddEventHandler(handler)
}

// Send delivers text to a phone identity and returns the provider message
// id. Media is not supported at transport level here; callers degrade
// media-only sends before calling. A connect failure or timeout surfaces as
// an error, never a panic.
func (w *WhatsAppClient) Send(ctx context.Context, phone, text string, media []entities.Media) (string, error) {
	jid, err := types.ParseJID(phone + "@s.whatsapp.net")
	if err != nil {
		return "", fmt.Errorf("invalid number format: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	resp, err := w.Client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: &text,
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (w *WhatsAppClient) SupportsMedia() bool { return false }

func (w *WhatsAppClient) Configured() bool { return w.IsConnected() }

// SendPresence broadcasts typing status before a reply goes out.
func (w *WhatsAppClient) SendPresence(to string) {
	jid, _ := types.ParseJID(to + "@s.whatsapp.net")
	w.Client.SendPresence(context.Background(), types.PresenceAvailable)
	w.Client.SendChatPresence(context.Background(), jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

// ParseMessage extracts the sender phone and text content of a gateway event.
func (w *WhatsAppClient) ParseMessage(evt *events.Message) (string, string) {
	sender := evt.Info.Sender.User
	var content string

	if evt.Message.Conversation != nil {
		content = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil {
		content = *evt.Message.ExtendedTextMessage.Text
	}

	return sender, content
}
