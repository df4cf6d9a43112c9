package chat

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leadtracker/crm/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Transaction runs fn against a Repo bound to a single transaction.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

// Rooms

// CreateRoomIfAbsent inserts room unless one with the same name exists.
// It reports whether this call created it.
func (r *Repo) CreateRoomIfAbsent(ctx context.Context, room *Room) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(room)
	return res.RowsAffected > 0, res.Error
}

func (r *Repo) GetRoomByName(ctx context.Context, name string) (*Room, error) {
	var room Room
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *Repo) GetRoom(ctx context.Context, id uint64) (*Room, error) {
	var room Room
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// AddMember is a no-op when the user is already a member.
func (r *Repo) AddMember(ctx context.Context, roomID, userID uint64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&RoomMember{RoomID: roomID, UserID: userID}).Error
}

func (r *Repo) IsMember(ctx context.Context, roomID, userID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *Repo) MemberIDs(ctx context.Context, roomID uint64) ([]uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&RoomMember{}).
		Where("room_id = ?", roomID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Messages

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessagesAfter returns messages with id > afterID in ASC id order (oldest -> newest).
func (r *Repo) ListMessagesAfter(ctx context.Context, roomID, afterID uint64, limit int) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("room_id = ? AND id > ?", roomID, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead flips the given unread messages not sent by readerID and returns
// how many actually changed.
func (r *Repo) MarkRead(ctx context.Context, roomID, readerID uint64, ids []uint64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Message{}).
		Where("room_id = ? AND id IN ? AND sender_id <> ? AND is_read = ?", roomID, ids, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// MarkRoomRead flips every unread message in the room not sent by readerID.
func (r *Repo) MarkRoomRead(ctx context.Context, roomID, readerID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Message{}).
		Where("room_id = ? AND sender_id <> ? AND is_read = ?", roomID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

type senderCount struct {
	SenderID uint64
	Unread   int64
}

// UnreadBySender counts unread messages addressed to userID in private rooms,
// grouped by sender.
func (r *Repo) UnreadBySender(ctx context.Context, userID uint64) (map[uint64]int64, error) {
	var rows []senderCount
	if err := r.db.WithContext(ctx).
		Table("chat_messages AS m").
		Select("m.sender_id AS sender_id, COUNT(*) AS unread").
		Joins("JOIN chat_room_members AS rm ON rm.room_id = m.room_id AND rm.user_id = ?", userID).
		Joins("JOIN chat_rooms AS r ON r.id = m.room_id").
		Where("r.is_private = ? AND m.sender_id <> ? AND m.is_read = ?", true, userID, false).
		Group("m.sender_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		out[row.SenderID] = row.Unread
	}
	return out, nil
}

// Users

func (r *Repo) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsersExcept returns every user but id, ordered by username.
func (r *Repo) ListUsersExcept(ctx context.Context, id uint64) ([]models.User, error) {
	var us []models.User
	if err := r.db.WithContext(ctx).
		Where("id <> ?", id).
		Order("username ASC").
		Find(&us).Error; err != nil {
		return nil, err
	}
	return us, nil
}

func (r *Repo) UsersByID(ctx context.Context, ids []uint64) (map[uint64]models.User, error) {
	out := make(map[uint64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var us []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&us).Error; err != nil {
		return nil, err
	}
	for _, u := range us {
		out[u.ID] = u
	}
	return out, nil
}
