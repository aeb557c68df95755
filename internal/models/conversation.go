package models

import (
	"time"

	"gorm.io/datatypes"
)

// MaxMessageBody bounds the length of a chat message.
const MaxMessageBody = 1000

// MessageType is the kind of chat message.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageSystem MessageType = "system"
)

// SystemSubtype qualifies a system message.
type SystemSubtype string

const (
	SystemJoin            SystemSubtype = "join"
	SystemLeave           SystemSubtype = "leave"
	SystemItemSold        SystemSubtype = "item_sold"
	SystemItemUnavailable SystemSubtype = "item_unavailable"
)

// Conversation is the single thread between a buyer and the seller of one
// listing. The (item, seller, buyer) triple is unique.
type Conversation struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ItemID           uint      `gorm:"not null;uniqueIndex:idx_conversations_triple,priority:1" json:"item_id"`
	Item             *Listing  `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	SellerID         uint      `gorm:"not null;uniqueIndex:idx_conversations_triple,priority:2;index" json:"seller_id"`
	Seller           *User     `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	BuyerID          uint      `gorm:"not null;uniqueIndex:idx_conversations_triple,priority:3;index" json:"buyer_id"`
	Buyer            *User     `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	LastMessage      string    `gorm:"size:1000" json:"last_message"`
	LastMessageAt    time.Time `gorm:"index" json:"last_message_at"`
	IsActive         bool      `gorm:"not null;default:true;index" json:"is_active"`
	SellerLastReadAt time.Time `json:"seller_last_read_at"`
	BuyerLastReadAt  time.Time `json:"buyer_last_read_at"`
	// UnreadCount is computed for the requesting participant
	UnreadCount int       `gorm:"->;-:migration" json:"unread_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasParticipant reports whether userID is the buyer or the seller.
func (c *Conversation) HasParticipant(userID uint) bool {
	return userID != 0 && (c.BuyerID == userID || c.SellerID == userID)
}

// OtherParticipant returns the counterpart of userID.
func (c *Conversation) OtherParticipant(userID uint) uint {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// LastReadColumn returns the last-read column owned by userID.
func (c *Conversation) LastReadColumn(userID uint) string {
	if c.SellerID == userID {
		return "seller_last_read_at"
	}
	return "buyer_last_read_at"
}

// Message is immutable once written; only read receipts are appended.
type Message struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	ConversationID uint                        `gorm:"not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	SenderID       uint                        `gorm:"not null;index" json:"sender_id"`
	Sender         *User                       `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Body           string                      `gorm:"size:1000;not null" json:"message"`
	MessageType    MessageType                 `gorm:"type:varchar(10);not null;default:'text'" json:"message_type"`
	SystemSubtype  *SystemSubtype              `gorm:"type:varchar(20)" json:"system_message_type,omitempty"`
	Attachments    datatypes.JSONSlice[string] `json:"attachments,omitempty"`
	ReadBy         []MessageRead               `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"read_by,omitempty"`
	CreatedAt      time.Time                   `gorm:"index:idx_messages_conversation_created,priority:2" json:"created_at"`
}

// MessageRead is a read receipt; one per (message, reader).
type MessageRead struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_message_reads_unique,priority:1" json:"-"`
	ReaderID  uint      `gorm:"not null;uniqueIndex:idx_message_reads_unique,priority:2" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}
