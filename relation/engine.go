package relation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fusionchat/server/apperr"
	"github.com/fusionchat/server/delivery"
	"github.com/fusionchat/server/model"
	"github.com/fusionchat/server/presence"
)

// Engine implements friend requests, friendships and blocks.
type Engine struct {
	db       *gorm.DB
	registry *presence.Registry
	router   *delivery.Router
	logger   *zap.Logger
}

func NewEngine(db *gorm.DB, registry *presence.Registry, router *delivery.Router, logger *zap.Logger) *Engine {
	return &Engine{db: db, registry: registry, router: router, logger: logger}
}

// FriendInfo is a friend's public profile plus live presence.
type FriendInfo struct {
	model.Profile
	Online bool `json:"online"`
}

// RequestInfo is a pending incoming friend request with its sender.
type RequestInfo struct {
	ID        int64         `json:"id"`
	Sender    model.Profile `json:"sender"`
	CreatedAt time.Time     `json:"created_at"`
}

// SendRequest creates a pending friend request from sender to receiver
// and pushes a new_friend_request event to the receiver if online.
func (e *Engine) SendRequest(ctx context.Context, senderID, receiverID int64) (*model.FriendRequest, error) {
	if senderID == receiverID {
		return nil, apperr.Validation("cannot send a friend request to yourself")
	}

	var receiver model.User
	if err := e.db.WithContext(ctx).First(&receiver, receiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("load receiver", err)
	}

	blocked, err := e.IsBlocked(ctx, receiverID, senderID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperr.Permission("this user has blocked you")
	}

	// The precondition checks and the insert run in one transaction so a
	// pair of simultaneous opposite-direction requests cannot both pass
	// the counts and both land.
	req := &model.FriendRequest{SenderID: senderID, ReceiverID: receiverID}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var friends int64
		if err := tx.Model(&model.Friendship{}).
			Where("user_id = ? AND friend_id = ?", senderID, receiverID).
			Count(&friends).Error; err != nil {
			return err
		}
		if friends > 0 {
			return apperr.Conflict("already friends")
		}

		var pending int64
		if err := tx.Model(&model.FriendRequest{}).
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
				senderID, receiverID, receiverID, senderID).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return apperr.Conflict("a request between these users already exists")
		}

		return tx.Create(req).Error
	})
	if err != nil {
		var classified *apperr.Error
		if errors.As(err, &classified) {
			return nil, classified
		}
		return nil, apperr.Internal("create friend request", err)
	}

	var sender model.User
	if err := e.db.WithContext(ctx).First(&sender, senderID).Error; err == nil {
		e.router.Notify(receiverID, delivery.EventNewFriendRequest, map[string]any{
			"request_id": req.ID,
			"sender":     sender.PublicProfile(),
		})
	}

	e.logger.Info("friend request sent",
		zap.Int64("sender_id", senderID),
		zap.Int64("receiver_id", receiverID))
	return req, nil
}

// AcceptRequest accepts a pending request addressed to userID. The
// request row is deleted and both friendship rows are created in one
// transaction; the sender gets a friend_request_accepted event.
func (e *Engine) AcceptRequest(ctx context.Context, userID, requestID int64) error {
	var req model.FriendRequest
	err := e.db.WithContext(ctx).
		Where("id = ? AND receiver_id = ?", requestID, userID).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("friend request not found")
		}
		return apperr.Internal("load friend request", err)
	}

	// Both rows must land together; a half-accepted friendship would be
	// one-directional. The lower user ID is inserted first so retries
	// after a unique-index conflict behave deterministically.
	lo, hi := req.SenderID, req.ReceiverID
	if lo > hi {
		lo, hi = hi, lo
	}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.FriendRequest{}, req.ID).Error; err != nil {
			return err
		}
		// A mirror request may exist if both users asked at nearly the
		// same time; it must not survive the friendship.
		if err := tx.Where("sender_id = ? AND receiver_id = ?", req.ReceiverID, req.SenderID).
			Delete(&model.FriendRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.Friendship{UserID: lo, FriendID: hi}).Error; err != nil {
			return err
		}
		return tx.Create(&model.Friendship{UserID: hi, FriendID: lo}).Error
	})
	if err != nil {
		return apperr.Internal("accept friend request", err)
	}

	var accepter model.User
	if err := e.db.WithContext(ctx).First(&accepter, userID).Error; err == nil {
		e.router.Notify(req.SenderID, delivery.EventFriendRequestAccepted, map[string]any{
			"friend": accepter.PublicProfile(),
		})
	}

	e.logger.Info("friend request accepted",
		zap.Int64("request_id", requestID),
		zap.Int64("user_id", userID))
	return nil
}

// DeleteFriend removes the friendship between userID and friendID.
func (e *Engine) DeleteFriend(ctx context.Context, userID, friendID int64) error {
	friends, err := e.AreFriends(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !friends {
		return apperr.NotFound("not friends with this user")
	}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where(
			"(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, friendID, friendID, userID).
			Delete(&model.Friendship{}).Error
	})
	if err != nil {
		return apperr.Internal("delete friendship", err)
	}
	e.logger.Info("friendship deleted",
		zap.Int64("user_id", userID),
		zap.Int64("friend_id", friendID))
	return nil
}

// Block records that userID blocks targetID. The block is directional
// and leaves any existing friendship or pending request in place; it
// only gates message delivery and new friend requests toward userID.
func (e *Engine) Block(ctx context.Context, userID, targetID int64) error {
	if userID == targetID {
		return apperr.Validation("cannot block yourself")
	}
	var target model.User
	if err := e.db.WithContext(ctx).First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal("load target user", err)
	}
	blocked, err := e.IsBlocked(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if blocked {
		return apperr.Conflict("user is already blocked")
	}

	if err := e.db.WithContext(ctx).Create(&model.Block{UserID: userID, BlockedID: targetID}).Error; err != nil {
		return apperr.Internal("block user", err)
	}
	e.logger.Info("user blocked",
		zap.Int64("blocker_id", userID),
		zap.Int64("blocked_id", targetID))
	return nil
}

// Unblock removes userID's block on targetID.
func (e *Engine) Unblock(ctx context.Context, userID, targetID int64) error {
	res := e.db.WithContext(ctx).
		Where("user_id = ? AND blocked_id = ?", userID, targetID).
		Delete(&model.Block{})
	if res.Error != nil {
		return apperr.Internal("unblock user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user is not blocked")
	}
	e.logger.Info("user unblocked",
		zap.Int64("blocker_id", userID),
		zap.Int64("blocked_id", targetID))
	return nil
}

// IsBlocked reports whether blockerID has blocked targetID. The check
// is directional.
func (e *Engine) IsBlocked(ctx context.Context, blockerID, targetID int64) (bool, error) {
	var n int64
	err := e.db.WithContext(ctx).Model(&model.Block{}).
		Where("user_id = ? AND blocked_id = ?", blockerID, targetID).
		Count(&n).Error
	if err != nil {
		return false, apperr.Internal("check block", err)
	}
	return n > 0, nil
}

// AreFriends reports whether a and b are friends.
func (e *Engine) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	var n int64
	err := e.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&n).Error
	if err != nil {
		return false, apperr.Internal("check friendship", err)
	}
	return n > 0, nil
}

// ListFriends returns the user's friends with live presence flags.
func (e *Engine) ListFriends(ctx context.Context, userID int64) ([]FriendInfo, error) {
	var friends []model.User
	err := e.db.WithContext(ctx).
		Joins("JOIN friendships ON friendships.friend_id = users.id").
		Where("friendships.user_id = ?", userID).
		Order("users.display_name").
		Find(&friends).Error
	if err != nil {
		return nil, apperr.Internal("list friends", err)
	}
	result := make([]FriendInfo, len(friends))
	for i, f := range friends {
		result[i] = FriendInfo{
			Profile: f.PublicProfile(),
			Online:  e.registry.IsOnline(f.ID),
		}
	}
	return result, nil
}

// ListIncomingRequests returns pending requests addressed to userID.
func (e *Engine) ListIncomingRequests(ctx context.Context, userID int64) ([]RequestInfo, error) {
	var requests []model.FriendRequest
	err := e.db.WithContext(ctx).
		Where("receiver_id = ?", userID).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, apperr.Internal("list requests", err)
	}
	result := make([]RequestInfo, 0, len(requests))
	for _, req := range requests {
		var sender model.User
		if err := e.db.WithContext(ctx).First(&sender, req.SenderID).Error; err != nil {
			continue
		}
		result = append(result, RequestInfo{
			ID:        req.ID,
			Sender:    sender.PublicProfile(),
			CreatedAt: req.CreatedAt,
		})
	}
	return result, nil
}

// SearchCandidates finds users whose display name contains the query,
// excluding the caller, existing friends and users with a pending
// request in either direction. Blocked users still appear so the caller
// can find and unblock them.
func (e *Engine) SearchCandidates(ctx context.Context, userID int64, query string) ([]model.Profile, error) {
	if query == "" {
		return nil, apperr.Validation("search query must not be empty")
	}
	var users []model.User
	err := e.db.WithContext(ctx).
		Where("display_name LIKE ?", "%"+query+"%").
		Where("id <> ?", userID).
		Where("id NOT IN (SELECT friend_id FROM friendships WHERE user_id = ?)", userID).
		Where("id NOT IN (SELECT receiver_id FROM friend_requests WHERE sender_id = ?)", userID).
		Where("id NOT IN (SELECT sender_id FROM friend_requests WHERE receiver_id = ?)", userID).
		Order("display_name").
		Limit(50).
		Find(&users).Error
	if err != nil {
		return nil, apperr.Internal("search users", err)
	}
	return profiles(users), nil
}

// DiscoverOnline returns currently online users the caller might add:
// not self, not already friends, no pending request in either direction,
// and no block in either direction.
func (e *Engine) DiscoverOnline(ctx context.Context, userID int64) ([]model.Profile, error) {
	ids := e.registry.OnlineIDs()
	if len(ids) == 0 {
		return []model.Profile{}, nil
	}
	var users []model.User
	err := e.db.WithContext(ctx).
		Where("id IN ?", ids).
		Where("id <> ?", userID).
		Where("id NOT IN (SELECT friend_id FROM friendships WHERE user_id = ?)", userID).
		Where("id NOT IN (SELECT receiver_id FROM friend_requests WHERE sender_id = ?)", userID).
		Where("id NOT IN (SELECT sender_id FROM friend_requests WHERE receiver_id = ?)", userID).
		Where("id NOT IN (SELECT blocked_id FROM blocks WHERE user_id = ?)", userID).
		Where("id NOT IN (SELECT user_id FROM blocks WHERE blocked_id = ?)", userID).
		Order("display_name").
		Find(&users).Error
	if err != nil {
		return nil, apperr.Internal("discover online users", err)
	}
	return profiles(users), nil
}

func profiles(users []model.User) []model.Profile {
	out := make([]model.Profile, len(users))
	for i, u := range users {
		out[i] = u.PublicProfile()
	}
	return out
}
