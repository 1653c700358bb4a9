package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/types/events"

	"omnidesk/internal/config"
	"omnidesk/internal/entities"
	"omnidesk/internal/infrastructure"
	"omnidesk/internal/interfaces"
	"omnidesk/internal/interfaces/http"
	"omnidesk/internal/repository"
	"omnidesk/internal/usecases"
)

func main() {
	// Load .env file (optional in containerized deployments)
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	cfg := config.Parse()
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	// Connect to PostgreSQL
	pgClient, err := infrastructure.NewPostgresClient(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer pgClient.Close()

	// Initialize Repositories
	userRepo := repository.NewUserRepository(pgClient.Pool)
	customerRepo := repository.NewCustomerRepository(pgClient.Pool)
	conversationRepo := repository.NewConversationRepository(pgClient.Pool)
	messageRepo := repository.NewMessageRepository(pgClient.Pool)

	// Initialize Usecases & Services
	authUsecase := usecases.NewAuthUsecase(userRepo, cfg.JWTSecret)

	// Ensure Admin User
	if err := authUsecase.EnsureAdmin(context.Background(), "root", "root"); err != nil {
		logger.Warn().Err(err).Msg("ensure admin user failed")
	}

	classifier := infrastructure.NewLinguaClassifier()
	translateClient := infrastructure.NewGoogleTranslateClient(cfg.TranslateTimeout)
	contentStore := infrastructure.NewSupabaseContentStore(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket, cfg.TransportTimeout)
	mailer := infrastructure.NewSMTPMailer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromEmail, cfg.FromName, cfg.TransportTimeout, logger)

	gateway, err := infrastructure.NewWhatsAppClient(cfg.GatewayDBPath, cfg.TransportTimeout, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("chat gateway init failed, continuing without it")
		gateway = nil
	}

	languageService := usecases.NewLanguageService(classifier, logger)
	translationService := usecases.NewTranslationService(translateClient, cfg.OperatorLang, cfg.TranslateTimeout, logger)
	mediaService := usecases.NewMediaService(contentStore, logger)
	identityService := usecases.NewIdentityService(customerRepo, conversationRepo, logger)

	// A nil *WhatsAppClient inside a non-nil interface would defeat the
	// dispatcher's nil check, so only assign when the gateway exists.
	var chatTransport interfaces.ChatTransport
	if gateway != nil {
		chatTransport = gateway
	}
	dispatcher := usecases.NewDispatcher(translationService, mailer, chatTransport, cfg.FromName, logger)

	messageService := usecases.NewMessageService(
		identityService,
		mediaService,
		languageService,
		translationService,
		dispatcher,
		customerRepo,
		conversationRepo,
		messageRepo,
		logger,
	)

	// Route inbound gateway traffic through the same pipeline the webhooks use
	if gateway != nil {
		gateway.AddHandler(func(evt interface{}) {
			v, ok := evt.(*events.Message)
			if !ok {
				return
			}
			if v.Info.IsGroup {
				return
			}

			sender, content := gateway.ParseMessage(v)
			phone := http.ExtractPhoneNumber(sender)
			if cfg.StrictPhoneFilter && !http.ValidPhoneNumber(phone) {
				logger.Warn().Str("sender", sender).Msg("sender id is not a subscriber number, skipping")
				return
			}

			gateway.SendPresence(sender)
			go func() {
				_, err := messageService.ProcessInbound(context.Background(), usecases.InboundMessage{
					Channel:  entities.ChannelChat,
					Identity: usecases.Identity{Phone: phone},
					Name:     v.Info.PushName,
					Content:  content,
				})
				if err != nil {
					logger.Error().Err(err).Str("phone", phone).Msg("chat inbound failed")
				}
			}()
		})

		if err := gateway.Connect(); err != nil {
			logger.Warn().Err(err).Msg("chat gateway connect failed, pair via /api/chat/qr")
		}
	}

	// Setup HTTP server
	authMiddleware := http.NewMiddleware(cfg.JWTSecret)
	handler := http.NewHandler(messageService, gateway, customerRepo, conversationRepo, messageRepo, cfg.StrictPhoneFilter, logger)

	r := gin.Default()
	http.SetupRoutes(r, handler, authUsecase, authMiddleware)
	go func() {
		if err := r.Run("0.0.0.0:" + cfg.Port); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	logger.Info().Str("port", cfg.Port).Msg("server started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	if gateway != nil {
		gateway.Disconnect()
	}
}
