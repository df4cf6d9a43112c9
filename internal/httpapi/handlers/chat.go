package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadtracker/crm/internal/common"
)

// chatFail reports validation problems as 200 with success=false, which is
// what chat clients expect. Everything else maps as usual.
func (h *Handler) chatFail(c *gin.Context, op string, err error) {
	if errors.Is(err, common.ErrValidation) {
		common.Fail(c, http.StatusOK, err.Error())
		return
	}
	h.fail(c, op, err)
}

func (h *Handler) ChatUsers(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	contacts, err := h.Chat.Contacts(c.Request.Context(), uid)
	if err != nil {
		h.chatFail(c, "chat_users", err)
		return
	}
	common.OK(c, gin.H{"users": contacts})
}

type createRoomReq struct {
	UserID uint64 `json:"user_id" validate:"required"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req createRoomReq
	if err := bindJSON(c, &req); err != nil {
		h.chatFail(c, "create_room", err)
		return
	}
	room, created, err := h.Chat.GetOrCreatePrivateRoom(c.Request.Context(), uid, req.UserID)
	if err != nil {
		h.chatFail(c, "create_room", err)
		return
	}
	common.OK(c, gin.H{"room_id": room.ID, "room_name": room.Name, "created": created})
}

type sendMessageReq struct {
	RoomID  uint64 `json:"room_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req sendMessageReq
	if err := bindJSON(c, &req); err != nil {
		h.chatFail(c, "send_message", err)
		return
	}
	m, err := h.Chat.SendMessage(c.Request.Context(), uid, req.RoomID, req.Content)
	if err != nil {
		h.chatFail(c, "send_message", err)
		return
	}
	common.OK(c, gin.H{"message_id": m.ID, "timestamp": m.Timestamp, "message": m})
}

// GetMessages is polled with last_id set to the newest id the client has.
func (h *Handler) GetMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	roomID, err := paramID(c, "room_id")
	if err != nil {
		h.chatFail(c, "get_messages", err)
		return
	}
	lastID, err := queryUint(c, "last_id")
	if err != nil {
		h.chatFail(c, "get_messages", err)
		return
	}
	limit, err := queryUint(c, "limit")
	if err != nil {
		h.chatFail(c, "get_messages", err)
		return
	}

	msgs, err := h.Chat.Messages(c.Request.Context(), uid, roomID, lastID, int(limit))
	if err != nil {
		h.chatFail(c, "get_messages", err)
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

type markReadReq struct {
	RoomID     uint64   `json:"room_id" validate:"required"`
	MessageIDs []uint64 `json:"message_ids" validate:"required,min=1"`
}

func (h *Handler) MarkMessagesRead(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req markReadReq
	if err := bindJSON(c, &req); err != nil {
		h.chatFail(c, "mark_read", err)
		return
	}
	n, err := h.Chat.MarkRead(c.Request.Context(), uid, req.RoomID, req.MessageIDs)
	if err != nil {
		h.chatFail(c, "mark_read", err)
		return
	}
	common.OK(c, gin.H{"updated_count": n})
}

func (h *Handler) MarkRoomRead(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	roomID, err := paramID(c, "room_id")
	if err != nil {
		h.chatFail(c, "mark_room_read", err)
		return
	}
	n, err := h.Chat.MarkRoomRead(c.Request.Context(), uid, roomID)
	if err != nil {
		h.chatFail(c, "mark_room_read", err)
		return
	}
	common.OK(c, gin.H{"updated_count": n})
}

// A missing is_typing clears the flag.
type typingReq struct {
	RoomID   uint64 `json:"room_id" validate:"required"`
	IsTyping bool   `json:"is_typing"`
}

func (h *Handler) SetTyping(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req typingReq
	if err := bindJSON(c, &req); err != nil {
		h.chatFail(c, "set_typing", err)
		return
	}
	if err := h.Chat.SetTyping(c.Request.Context(), uid, req.RoomID, req.IsTyping); err != nil {
		h.chatFail(c, "set_typing", err)
		return
	}
	common.OK(c, gin.H{"is_typing": req.IsTyping})
}

func (h *Handler) GetTyping(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	roomID, err := queryUint(c, "room_id")
	if err != nil {
		h.chatFail(c, "get_typing", err)
		return
	}
	ids, err := h.Chat.TypingUsers(c.Request.Context(), uid, roomID)
	if err != nil {
		h.chatFail(c, "get_typing", err)
		return
	}
	common.OK(c, gin.H{"is_typing": len(ids) > 0, "user_ids": ids})
}

// A missing online marks the caller offline.
type presenceReq struct {
	Online bool `json:"online"`
}

func (h *Handler) SetPresence(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req presenceReq
	if err := bindJSON(c, &req); err != nil {
		h.chatFail(c, "set_presence", err)
		return
	}
	var err error
	if req.Online {
		err = h.Chat.SetOnline(c.Request.Context(), uid)
	} else {
		err = h.Chat.SetOffline(c.Request.Context(), uid)
	}
	if err != nil {
		h.chatFail(c, "set_presence", err)
		return
	}
	common.OK(c, gin.H{"online": req.Online})
}
