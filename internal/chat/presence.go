package chat

import "context"

var onFlag = []byte("1")

// SetOnline marks the user online until the presence TTL lapses.
func (s *Service) SetOnline(ctx context.Context, userID uint64) error {
	return s.cache.Set(ctx, presenceKey(userID), onFlag, s.presenceTTL)
}

func (s *Service) SetOffline(ctx context.Context, userID uint64) error {
	return s.cache.Delete(ctx, presenceKey(userID))
}

func (s *Service) IsOnline(ctx context.Context, userID uint64) (bool, error) {
	_, ok, err := s.cache.Get(ctx, presenceKey(userID))
	return ok, err
}

// SetTyping records or clears the user's typing flag in a room.
func (s *Service) SetTyping(ctx context.Context, userID, roomID uint64, typing bool) error {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return err
	}
	if !typing {
		return s.cache.Delete(ctx, typingKey(roomID, userID))
	}
	return s.cache.Set(ctx, typingKey(roomID, userID), onFlag, s.typingTTL)
}

// TypingUsers lists the other members of the room currently typing.
func (s *Service) TypingUsers(ctx context.Context, userID, roomID uint64) ([]uint64, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	members, err := s.repo.MemberIDs(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(members))
	for _, id := range members {
		if id == userID {
			continue
		}
		_, ok, err := s.cache.Get(ctx, typingKey(roomID, id))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// IsAnyoneTyping reports whether a member other than userID is typing.
func (s *Service) IsAnyoneTyping(ctx context.Context, userID, roomID uint64) (bool, error) {
	ids, err := s.TypingUsers(ctx, userID, roomID)
	return len(ids) > 0, err
}
