package model

import "time"

// Message is one chat message between two users. Messages are immutable
// once created; CreatedAt (with ID as tiebreaker) is the sole ordering key
// within a conversation.
type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   int64     `gorm:"index:idx_message_conv;not null" json:"sender_id"`
	ReceiverID int64     `gorm:"index:idx_message_conv;not null" json:"receiver_id"`
	Text       string    `gorm:"type:text" json:"text"`
	ImageURL   string    `gorm:"size:255" json:"image_url"`
	FileURL    string    `gorm:"size:255" json:"file_url"`
	CreatedAt  time.Time `gorm:"index:idx_message_conv;autoCreateTime:milli" json:"created_at"`
}
