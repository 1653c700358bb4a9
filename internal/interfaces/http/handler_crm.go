package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const (
	defaultConversationLimit = 50
	maxConversationLimit     = 200
	defaultMessageLimit      = 200
)

// ListConversations returns the inbox, most recently active first.
func (h *Handler) ListConversations(c *gin.Context) {
	limit := defaultConversationLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxConversationLimit {
			limit = n
		}
	}

	conversations, err := h.conversations.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list conversations failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetConversationMessages returns a conversation's history in send order
// and marks the conversation read, since an agent is now looking at it.
func (h *Handler) GetConversationMessages(c *gin.Context) {
	id := c.Param("id")
	conversation, err := h.conversations.GetByID(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", id).Msg("conversation lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversation"})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	messages, err := h.messages.ListByConversation(c.Request.Context(), id, defaultMessageLimit)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", id).Msg("message list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	if err := h.conversations.MarkRead(c.Request.Context(), id); err != nil {
		h.log.Warn().Err(err).Str("conversation_id", id).Msg("mark read failed")
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation": conversation,
		"messages":     messages,
	})
}

func (h *Handler) GetCustomer(c *gin.Context) {
	id := c.Param("id")
	customer, err := h.customers.GetByID(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("customer_id", id).Msg("customer lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch customer"})
		return
	}
	if customer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	c.JSON(http.StatusOK, customer)
}

// Health reports process liveness and gateway state.
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.gateway != nil {
		resp["chat_gateway"] = gin.H{
			"connected": h.gateway.IsConnected(),
			"logged_in": h.gateway.IsLoggedIn(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetGatewayQR returns the pairing QR code PNG for the chat gateway
func (h *Handler) GetGatewayQR(c *gin.Context) {
	if h.gateway == nil {
		c.String(http.StatusServiceUnavailable, "Chat gateway not configured")
		return
	}

	qrString := h.gateway.GetQR()
	if qrString == "" {
		if h.gateway.IsLoggedIn() {
			c.String(http.StatusOK, "Already logged in")
			return
		}
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}

	png, err := qrcode.Encode(qrString, qrcode.Medium, 256)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// GetGatewayStatus returns chat gateway connection status
func (h *Handler) GetGatewayStatus(c *gin.Context) {
	if h.gateway == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "error": "Chat gateway not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected": h.gateway.IsConnected(),
		"logged_in": h.gateway.IsLoggedIn(),
		"phone":     h.gateway.GetPhoneNumber(),
		"hasQR":     h.gateway.GetQR() != "",
	})
}

// LogoutGateway unpairs the chat gateway session
func (h *Handler) LogoutGateway(c *gin.Context) {
	if h.gateway == nil {
		c.JSON(http.StatusOK, gin.H{"status": "logged_out", "message": "Chat gateway not configured"})
		return
	}

	if err := h.gateway.Logout(); err != nil {
		h.log.Warn().Err(err).Msg("gateway logout")
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
