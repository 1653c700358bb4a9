package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"omnidesk/internal/entities"
	"omnidesk/internal/infrastructure"
	"omnidesk/internal/interfaces"
	"omnidesk/internal/usecases"
)

type Handler struct {
	messageService *usecases.MessageService
	gateway        *infrastructure.WhatsAppClient
	customers      interfaces.CustomerStore
	conversations  interfaces.ConversationStore
	messages       interfaces.MessageStore
	strictPhone    bool
	log            zerolog.Logger
}

func NewHandler(service *usecases.MessageService, gateway *infrastructure.WhatsAppClient, customers interfaces.CustomerStore, conversations interfaces.ConversationStore, messages interfaces.MessageStore, strictPhone bool, logger zerolog.Logger) *Handler {
	return &Handler{
		messageService: service,
		gateway:        gateway,
		customers:      customers,
		conversations:  conversations,
		messages:       messages,
		strictPhone:    strictPhone,
		log:            logger.With().Str("component", "http").Logger(),
	}
}

func SetupRoutes(r *gin.Engine, h *Handler, auth *usecases.AuthUsecase, middleware *Middleware) {
	// Apply Security Middleware
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(25 << 20)) // base64 attachments need headroom
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", h.Health)

	// Public inbound webhooks, one per channel
	webhooks := r.Group("")
	webhooks.Use(middleware.RateLimitPerIP(20, 40))
	{
		webhooks.POST("/api/emails/incoming", h.HandleIncomingEmail)
		webhooks.POST("/api/chat/incoming", h.HandleIncomingChat)
		webhooks.POST("/webhook/web", h.HandleWebMessage)
	}

	// Public Auth Routes
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var loginReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := auth.Login(c.Request.Context(), loginReq.Username, loginReq.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})

		authGroup.POST("/register", func(c *gin.Context) {
			var regReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&regReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			// Validate inputs
			if !ValidSlug(regReq.Username) || len(regReq.Password) < 6 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password (min 6 chars)"})
				return
			}
			if err := auth.Register(c.Request.Context(), regReq.Username, regReq.Password); err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"status": "registered"})
		})
	}

	// Protected agent API
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(5, 10))
	{
		api.POST("/messages/send", h.SendMessage)

		api.GET("/conversations", h.ListConversations)
		api.GET("/conversations/:id/messages", h.GetConversationMessages)
		api.GET("/customers/:id", h.GetCustomer)

		// Chat gateway management
		api.GET("/chat/qr", h.GetGatewayQR)
		api.GET("/chat/status", h.GetGatewayStatus)
		api.POST("/chat/logout", h.LogoutGateway)
	}
}

type emailIncomingRequest struct {
	FromEmail   string                `json:"from_email" binding:"required"`
	FromName    string                `json:"from_name"`
	Subject     string                `json:"subject"`
	Body        string                `json:"body"`
	HTMLBody    string                `json:"html_body"`
	Attachments []usecases.MediaInput `json:"attachments"`
}

// HandleIncomingEmail accepts the email provider webhook, extracts contact
// details out of the body, and feeds the result through the inbound
// pipeline.
func (h *Handler) HandleIncomingEmail(c *gin.Context) {
	var req emailIncomingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !ValidEmail(req.FromEmail) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid sender address"})
		return
	}

	body := req.Body
	if req.HTMLBody != "" {
		body = req.HTMLBody
	}
	parsed := usecases.ParseEmail(body, req.Subject)

	name := parsed.Name
	if name == "" {
		name = req.FromName
	}
	email := parsed.Email
	if email == "" || !ValidEmail(email) {
		email = strings.ToLower(req.FromEmail)
	}
	content := parsed.Content
	if content == "" {
		content = req.Body
	}
	content = SanitizeString(TruncateString(content, MaxContentLength))

	msg, err := h.messageService.ProcessInbound(c.Request.Context(), usecases.InboundMessage{
		Channel:  entities.ChannelEmail,
		Identity: usecases.Identity{Email: email, Phone: parsed.Phone},
		Name:     name,
		Content:  content,
		Media:    req.Attachments,
	})
	if err != nil {
		h.inboundError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message_id":        msg.ID,
		"conversation_id":   msg.ConversationID,
		"detected_language": msg.OriginalLanguage,
	})
}

type chatIncomingRequest struct {
	FromPhone string                `json:"from_phone" binding:"required"`
	FromName  string                `json:"from_name"`
	Content   string                `json:"content"`
	IsGroup   bool                  `json:"is_group"`
	Media     []usecases.MediaInput `json:"media"`
}

// HandleIncomingChat accepts messages relayed by an external chat gateway.
// The embedded gateway client delivers through the same pipeline directly.
func (h *Handler) HandleIncomingChat(c *gin.Context) {
	var req chatIncomingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if req.IsGroup {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "skipped", "reason": "group message"})
		return
	}

	phone := ExtractPhoneNumber(req.FromPhone)
	if h.strictPhone && !ValidPhoneNumber(phone) {
		h.log.Warn().Str("from", req.FromPhone).Msg("sender id is not a subscriber number, skipping")
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "skipped", "reason": "invalid phone number"})
		return
	}

	msg, err := h.messageService.ProcessInbound(c.Request.Context(), usecases.InboundMessage{
		Channel:  entities.ChannelChat,
		Identity: usecases.Identity{Phone: phone},
		Name:     req.FromName,
		Content:  SanitizeString(TruncateString(req.Content, MaxContentLength)),
		Media:    req.Media,
	})
	if err != nil {
		h.inboundError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message_id":        msg.ID,
		"conversation_id":   msg.ConversationID,
		"detected_language": msg.OriginalLanguage,
	})
}

type webIncomingRequest struct {
	Email   string                `json:"email"`
	Phone   string                `json:"phone"`
	Name    string                `json:"name"`
	Content string                `json:"content"`
	Media   []usecases.MediaInput `json:"media"`
}

// HandleWebMessage accepts messages from the site widget.
func (h *Handler) HandleWebMessage(c *gin.Context) {
	var req webIncomingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.Email != "" && !ValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid email address"})
		return
	}

	msg, err := h.messageService.ProcessInbound(c.Request.Context(), usecases.InboundMessage{
		Channel:  entities.ChannelWeb,
		Identity: usecases.Identity{Email: strings.ToLower(req.Email), Phone: ExtractPhoneNumber(req.Phone)},
		Name:     req.Name,
		Content:  SanitizeString(TruncateString(req.Content, MaxContentLength)),
		Media:    req.Media,
	})
	if err != nil {
		h.inboundError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message_id":      msg.ID,
		"conversation_id": msg.ConversationID,
	})
}

type sendMessageRequest struct {
	ConversationID string                `json:"conversation_id" binding:"required"`
	Content        string                `json:"content"`
	Media          []usecases.MediaInput `json:"media"`
}

// SendMessage stores an agent reply and dispatches it to the customer.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	content := SanitizeString(TruncateString(req.Content, MaxContentLength))
	msg, result, err := h.messageService.SendAgentReply(c.Request.Context(), req.ConversationID, content, req.Media)
	if err != nil {
		switch {
		case errors.Is(err, usecases.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Message content cannot be empty"})
		case errors.Is(err, usecases.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Conversation not found"})
		default:
			h.log.Error().Err(err).Msg("agent reply failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to send message"})
		}
		return
	}

	resp := gin.H{
		"success":    true,
		"message_id": msg.ID,
		"attempted":  result.Attempted,
		"sent":       result.Sent,
	}
	if result.BlockedReason != "" {
		resp["blocked_reason"] = result.BlockedReason
	}
	if result.Err != nil {
		resp["error"] = result.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) inboundError(c *gin.Context, err error) {
	if errors.Is(err, usecases.ErrEmptyMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No message content found"})
		return
	}
	h.log.Error().Err(err).Msg("inbound processing failed")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to process message"})
}
