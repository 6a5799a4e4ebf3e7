package public

import (
	"errors"

	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

// UserRegisterRequest 用户注册请求
type UserRegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
}

// UserLoginRequest 用户登录请求
type UserLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func userProfileView(user *models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"phone":        user.Phone,
		"status":       user.Status,
		"created_at":   user.CreatedAt,
	}
}

// UserRegister 用户注册
func (h *Handler) UserRegister(c *gin.Context) {
	var req UserRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	user, err := h.UserAuthService.Register(req.Email, req.Password, req.DisplayName, req.Phone)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			respondError(c, response.CodeBadRequest, "error.email_registered", nil)
			return
		}
		respondError(c, response.CodeBadRequest, "error.register_failed", err)
		return
	}
	response.Success(c, userProfileView(user))
}

// UserLogin 用户登录
func (h *Handler) UserLogin(c *gin.Context) {
	var req UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	user, token, expiresAt, err := h.UserAuthService.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserDisabled):
			respondError(c, response.CodeUnauthorized, "error.user_disabled", nil)
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, response.CodeUnauthorized, "error.login_failed", nil)
		default:
			respondError(c, response.CodeInternal, "error.login_failed", err)
		}
		return
	}
	response.Success(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       userProfileView(user),
	})
}

// GetCurrentUser 获取当前登录用户资料
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.UserRepo.GetByID(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.unauthorized", err)
		return
	}
	if user == nil {
		respondError(c, response.CodeUnauthorized, "error.token_invalid", nil)
		return
	}
	response.Success(c, userProfileView(user))
}
