package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fusionchat/server/chat"
	mw "github.com/fusionchat/server/middleware"
)

// MessagesHandler handles direct message REST endpoints.
type MessagesHandler struct {
	pipeline *chat.Pipeline
}

// NewMessagesHandler creates a new MessagesHandler.
func NewMessagesHandler(pipeline *chat.Pipeline) *MessagesHandler {
	return &MessagesHandler{pipeline: pipeline}
}

// History handles GET /api/messages/:id (id is the other user).
func (h *MessagesHandler) History(c *gin.Context) {
	otherID, ok := pathID(c)
	if !ok {
		return
	}
	messages, err := h.pipeline.History(c.Request.Context(), mw.GetUserID(c), otherID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Send handles POST /api/messages/send/:id as multipart form data: a
// "text" field plus an optional "file" attachment.
func (h *MessagesHandler) Send(c *gin.Context) {
	receiverID, ok := pathID(c)
	if !ok {
		return
	}

	text := c.PostForm("text")
	attachment, err := c.FormFile("file")
	if err != nil && err != http.ErrMissingFile {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed upload"})
		return
	}
	if err == http.ErrMissingFile {
		attachment = nil
	}

	msg, err := h.pipeline.Send(c.Request.Context(), mw.GetUserID(c), receiverID, text, attachment)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
