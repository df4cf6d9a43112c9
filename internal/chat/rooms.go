package chat

import (
	"context"

	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/metrics"
)

// GetOrCreatePrivateRoom returns the private room shared by callerID and
// otherID, creating it on first use. Concurrent calls for the same pair, in
// either order, converge on one room with both users as members.
func (s *Service) GetOrCreatePrivateRoom(ctx context.Context, callerID, otherID uint64) (*Room, bool, error) {
	if otherID == 0 {
		return nil, false, common.Invalid("user_id is required")
	}
	if otherID == callerID {
		return nil, false, common.Invalid("cannot open a private room with yourself")
	}
	if _, err := s.repo.GetUser(ctx, otherID); err != nil {
		return nil, false, notFound(err, "user")
	}

	name := PrivateRoomName(callerID, otherID)
	var (
		room    *Room
		created bool
	)
	err := s.repo.Transaction(ctx, func(tx *Repo) error {
		var err error
		created, err = tx.CreateRoomIfAbsent(ctx, &Room{Name: name, CreatorID: callerID, IsPrivate: true})
		if err != nil {
			return err
		}
		if room, err = tx.GetRoomByName(ctx, name); err != nil {
			return err
		}
		if err := tx.AddMember(ctx, room.ID, callerID); err != nil {
			return err
		}
		return tx.AddMember(ctx, room.ID, otherID)
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.ChatRoomsTotal.WithLabelValues("created").Inc()
		s.log.Info().Uint64("room_id", room.ID).Str("name", name).Msg("private room created")
	} else {
		metrics.ChatRoomsTotal.WithLabelValues("existing").Inc()
	}
	return room, created, nil
}

// Room returns a room the user belongs to.
func (s *Service) Room(ctx context.Context, userID, roomID uint64) (*Room, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, notFound(err, "room")
	}
	return room, nil
}

// Contacts lists every other user with presence and the number of unread
// messages they sent the caller in private rooms.
func (s *Service) Contacts(ctx context.Context, userID uint64) ([]Contact, error) {
	users, err := s.repo.ListUsersExcept(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadBySender(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Contact, 0, len(users))
	for _, u := range users {
		online, err := s.IsOnline(ctx, u.ID)
		if err != nil {
			s.log.Warn().Err(err).Uint64("user_id", u.ID).Msg("presence lookup failed")
		}
		out = append(out, Contact{
			ID:          u.ID,
			Username:    u.Username,
			FullName:    u.DisplayName(),
			IsOnline:    online,
			UnreadCount: unread[u.ID],
		})
	}
	return out, nil
}
