package chat

import (
	"fmt"
	"time"
)

type Room struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	CreatorID uint64    `gorm:"index;not null" json:"creator_id"`
	IsPrivate bool      `gorm:"not null;default:false" json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
}

func (Room) TableName() string { return "chat_rooms" }

type RoomMember struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID   uint64    `gorm:"not null;index:uniq_room_member,unique,priority:1" json:"room_id"`
	UserID   uint64    `gorm:"not null;index;index:uniq_room_member,unique,priority:2" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (RoomMember) TableName() string { return "chat_room_members" }

// Message is immutable once stored, except for IsRead which only goes false -> true.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    uint64    `gorm:"not null;index:idx_chat_msg_room_id,priority:1" json:"room_id"`
	SenderID  uint64    `gorm:"not null;index" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsRead    bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time `gorm:"index:idx_chat_msg_room_id,priority:2" json:"timestamp"`
}

func (Message) TableName() string { return "chat_messages" }

// MessageView is a message as seen by one room member.
type MessageView struct {
	ID         uint64    `json:"id"`
	RoomID     uint64    `json:"room_id"`
	SenderID   uint64    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsSender   bool      `json:"is_sender"`
	IsRead     bool      `json:"is_read"`
}

// Contact is another user as listed in the chat sidebar.
type Contact struct {
	ID          uint64 `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	IsOnline    bool   `json:"is_online"`
	UnreadCount int64  `json:"unread_count"`
}

// PrivateRoomName is the same for (a, b) and (b, a).
func PrivateRoomName(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("private_%d_%d", a, b)
}

func presenceKey(userID uint64) string {
	return fmt.Sprintf("user_online:%d", userID)
}

func typingKey(roomID, userID uint64) string {
	return fmt.Sprintf("typing:%d:%d", roomID, userID)
}
