package chat

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fusionchat/server/apperr"
	"github.com/fusionchat/server/delivery"
	"github.com/fusionchat/server/model"
	"github.com/fusionchat/server/relation"
	"github.com/fusionchat/server/storage"
)

const maxTextLen = 2000

// Pipeline persists direct messages and pushes them to online receivers.
type Pipeline struct {
	db       *gorm.DB
	relation *relation.Engine
	router   *delivery.Router
	uploader storage.Uploader
	logger   *zap.Logger
}

func NewPipeline(db *gorm.DB, rel *relation.Engine, router *delivery.Router, uploader storage.Uploader, logger *zap.Logger) *Pipeline {
	return &Pipeline{db: db, relation: rel, router: router, uploader: uploader, logger: logger}
}

// Send stores a message from sender to receiver and pushes a
// new_message event if the receiver is online. The attachment, if any,
// lands in ImageURL or FileURL depending on its sniffed content type.
// The write succeeds even when the push cannot be delivered.
func (p *Pipeline) Send(ctx context.Context, senderID, receiverID int64, text string, attachment *multipart.FileHeader) (*model.Message, error) {
	var receiver model.User
	if err := p.db.WithContext(ctx).First(&receiver, receiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("load receiver", err)
	}

	// Only the receiver's block list gates delivery; a sender who
	// blocked the receiver can still message them.
	blocked, err := p.relation.IsBlocked(ctx, receiverID, senderID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperr.Permission("this user has blocked you")
	}

	text = strings.TrimSpace(text)
	if len([]rune(text)) > maxTextLen {
		return nil, apperr.Validation("message text too long")
	}
	if text == "" && attachment == nil {
		return nil, apperr.Validation("message is empty")
	}

	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
	}
	if attachment != nil {
		url, kind, err := p.uploader.Upload(attachment)
		if err != nil {
			return nil, err
		}
		if kind == storage.KindImage {
			msg.ImageURL = url
		} else {
			msg.FileURL = url
		}
	}

	if err := p.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, apperr.Internal("store message", err)
	}

	p.router.Notify(receiverID, delivery.EventNewMessage, msg)

	p.logger.Info("message sent",
		zap.Int64("message_id", msg.ID),
		zap.Int64("sender_id", senderID),
		zap.Int64("receiver_id", receiverID))
	return msg, nil
}

// History returns the full conversation between userID and otherID,
// both directions, oldest first. The (created_at, id) order keeps
// same-millisecond messages stable.
func (p *Pipeline) History(ctx context.Context, userID, otherID int64) ([]model.Message, error) {
	var other model.User
	if err := p.db.WithContext(ctx).First(&other, otherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("load user", err)
	}

	var messages []model.Message
	err := p.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, otherID, otherID, userID).
		Order("created_at, id").
		Find(&messages).Error
	if err != nil {
		return nil, apperr.Internal("load history", err)
	}
	return messages, nil
}
