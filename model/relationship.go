package model

import "time"

// FriendRequest is a pending friend request from Sender to Receiver.
// It is destroyed on acceptance; there is no reject or expiry transition.
type FriendRequest struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   int64     `gorm:"uniqueIndex:idx_request_pair;not null" json:"sender_id"`
	ReceiverID int64     `gorm:"uniqueIndex:idx_request_pair;not null" json:"receiver_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Friendship is one direction of a mutual friendship. A friendship always
// exists as two mirror rows (A→B and B→A); the relationship engine writes
// and deletes both inside one transaction so the relation stays symmetric.
type Friendship struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:idx_friend_pair;not null" json:"user_id"`
	FriendID  int64     `gorm:"uniqueIndex:idx_friend_pair;not null" json:"friend_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Block records that UserID has blocked BlockedID. Blocking is directional
// and independent of friendship state: it does not remove an existing
// friendship or pending request.
type Block struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:idx_block_pair;not null" json:"user_id"`
	BlockedID int64     `gorm:"uniqueIndex:idx_block_pair;not null" json:"blocked_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
