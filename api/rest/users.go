package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fusionchat/server/apperr"
	mw "github.com/fusionchat/server/middleware"
	"github.com/fusionchat/server/model"
	"github.com/fusionchat/server/storage"
)

// UsersHandler handles profile and assistant settings endpoints.
type UsersHandler struct {
	db       *gorm.DB
	uploader storage.Uploader
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(db *gorm.DB, uploader storage.Uploader) *UsersHandler {
	return &UsersHandler{db: db, uploader: uploader}
}

type userView struct {
	model.Profile
	Email          string `json:"email"`
	AssistantName  string `json:"assistant_name"`
	AssistantImage string `json:"assistant_image"`
}

func viewOf(u *model.User) userView {
	return userView{
		Profile:        u.PublicProfile(),
		Email:          u.Email,
		AssistantName:  u.AssistantName,
		AssistantImage: u.AssistantImage,
	}
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(c *gin.Context) {
	var user model.User
	if err := h.db.First(&user, mw.GetUserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, apperr.NotFound("user not found"))
		} else {
			fail(c, apperr.Internal("load user", err))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": viewOf(&user)})
}

// UpdateSettings handles PUT /api/users/settings as multipart form
// data: display_name and assistant_name fields plus optional "avatar"
// and "assistant_image" image uploads.
func (h *UsersHandler) UpdateSettings(c *gin.Context) {
	var user model.User
	if err := h.db.First(&user, mw.GetUserID(c)).Error; err != nil {
		fail(c, apperr.Internal("load user", err))
		return
	}

	updates := map[string]interface{}{}
	if name := c.PostForm("display_name"); name != "" {
		if len(name) < 2 || len(name) > 32 {
			fail(c, apperr.Validation("display name must be 2-32 characters"))
			return
		}
		updates["display_name"] = name
	}
	if name := c.PostForm("assistant_name"); name != "" {
		updates["assistant_name"] = name
	}

	for field, column := range map[string]string{
		"avatar":          "avatar_url",
		"assistant_image": "assistant_image",
	} {
		fh, err := c.FormFile(field)
		if err == http.ErrMissingFile {
			continue
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed upload"})
			return
		}
		url, kind, err := h.uploader.Upload(fh)
		if err != nil {
			fail(c, err)
			return
		}
		if kind != storage.KindImage {
			fail(c, apperr.Validation(field+" must be an image"))
			return
		}
		updates[column] = url
	}

	if len(updates) == 0 {
		fail(c, apperr.Validation("nothing to update"))
		return
	}
	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		fail(c, apperr.Internal("update settings", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": viewOf(&user)})
}
