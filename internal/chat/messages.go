package chat

import (
	"context"
	"strings"

	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/metrics"
)

const maxPollLimit = 50

func (s *Service) SendMessage(ctx context.Context, senderID, roomID uint64, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if roomID == 0 {
		return nil, common.Invalid("room_id is required")
	}
	if content == "" {
		return nil, common.Invalid("content is required")
	}
	if err := s.requireMember(ctx, roomID, senderID); err != nil {
		return nil, err
	}

	m := &Message{RoomID: roomID, SenderID: senderID, Content: content}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	metrics.ChatMessagesSent.Inc()

	// sending ends typing
	if err := s.cache.Delete(ctx, typingKey(roomID, senderID)); err != nil {
		s.log.Warn().Err(err).Uint64("room_id", roomID).Msg("clear typing failed")
	}

	views, err := s.views(ctx, senderID, []Message{*m})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Messages returns up to limit messages newer than afterID, oldest first.
// Pollers pass the last id they saw as afterID.
func (s *Service) Messages(ctx context.Context, userID, roomID, afterID uint64, limit int) ([]MessageView, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPollLimit {
		limit = maxPollLimit
	}
	msgs, err := s.repo.ListMessagesAfter(ctx, roomID, afterID, limit)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, userID, msgs)
}

// MarkRead marks the listed messages read for userID. Messages userID sent,
// messages from other rooms and messages already read are left alone.
func (s *Service) MarkRead(ctx context.Context, userID, roomID uint64, ids []uint64) (int64, error) {
	if roomID == 0 {
		return 0, common.Invalid("room_id is required")
	}
	if len(ids) == 0 {
		return 0, common.Invalid("message_ids is required")
	}
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkRead(ctx, roomID, userID, ids)
	if err != nil {
		return 0, err
	}
	metrics.ChatMessagesMarkedRead.Add(float64(n))
	return n, nil
}

func (s *Service) MarkRoomRead(ctx context.Context, userID, roomID uint64) (int64, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkRoomRead(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	metrics.ChatMessagesMarkedRead.Add(float64(n))
	return n, nil
}

func (s *Service) views(ctx context.Context, viewerID uint64, msgs []Message) ([]MessageView, error) {
	out := make([]MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}
	seen := make(map[uint64]struct{})
	ids := make([]uint64, 0, 2)
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}
	users, err := s.repo.UsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		var name string
		if u, ok := users[m.SenderID]; ok {
			name = u.DisplayName()
		}
		out = append(out, MessageView{
			ID:         m.ID,
			RoomID:     m.RoomID,
			SenderID:   m.SenderID,
			SenderName: name,
			Content:    m.Content,
			Timestamp:  m.CreatedAt,
			IsSender:   m.SenderID == viewerID,
			IsRead:     m.IsRead,
		})
	}
	return out, nil
}
