package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fusionchat/server/apperr"
	"github.com/fusionchat/server/assistant"
	mw "github.com/fusionchat/server/middleware"
	"github.com/fusionchat/server/model"
)

// AIHandler handles AI assistant REST endpoints.
type AIHandler struct {
	db        *gorm.DB
	assistant assistant.Assistant
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(db *gorm.DB, a assistant.Assistant) *AIHandler {
	return &AIHandler{db: db, assistant: a}
}

type askRequest struct {
	Command string `json:"command" binding:"required"`
}

// Ask handles POST /api/ai/ask. The assistant answers in the persona
// the user configured in their settings.
func (h *AIHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user model.User
	if err := h.db.First(&user, mw.GetUserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, apperr.NotFound("user not found"))
		} else {
			fail(c, apperr.Internal("load user", err))
		}
		return
	}

	intent, err := h.assistant.Ask(c.Request.Context(), user.AssistantName, user.DisplayName, req.Command)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}
