package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadtracker/crm/internal/auth"
	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/models"
	"github.com/leadtracker/crm/internal/users"
)

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func userJSON(u *models.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"is_admin":      u.IsAdmin,
		"last_login_at": u.LastLoginAt,
		"created_at":    u.CreatedAt,
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "login", err)
		return
	}

	u, err := h.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, "login", err)
		return
	}

	token, err := auth.SignJWT(u.ID, u.IsAdmin, h.Cfg.JWTSecret, h.Cfg.TokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, "failed to sign token")
		return
	}

	common.OK(c, gin.H{"token": token, "user": userJSON(u)})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	u, err := h.Users.Get(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "me", err)
		return
	}
	common.OK(c, gin.H{"user": userJSON(u)})
}

type createUserReq struct {
	Username  string `json:"username" validate:"required,max=150"`
	Password  string `json:"password" validate:"required,min=8"`
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	IsAdmin   bool   `json:"is_admin"`
}

// CreateUser is admin only.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserReq
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "create_user", err)
		return
	}

	u, err := h.Users.Create(c.Request.Context(), users.NewUser{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsAdmin:   req.IsAdmin,
	})
	if err != nil {
		h.fail(c, "create_user", err)
		return
	}
	common.OK(c, gin.H{"user": userJSON(u)})
}

func (h *Handler) GetUserByID(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		h.fail(c, "get_user", err)
		return
	}
	u, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get_user", err)
		return
	}
	common.OK(c, gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"full_name":  u.DisplayName(),
		"created_at": u.CreatedAt,
	})
}
