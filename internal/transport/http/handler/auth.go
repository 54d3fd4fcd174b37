package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mushroom-classifier/internal/app"
	"mushroom-classifier/internal/logging"
	"mushroom-classifier/internal/metrics"
	"mushroom-classifier/internal/model"
	"mushroom-classifier/internal/transport/http/middleware"
	"mushroom-classifier/internal/transport/http/response"
)

// AuthHandler serves the token-based /api/v1/auth endpoints.
type AuthHandler struct {
	authService *app.AuthService
	metrics     *metrics.Metrics
	log         *zap.Logger
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=72"`
}

func NewAuthHandler(authService *app.AuthService, m *metrics.Metrics, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, metrics: m, log: log}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	user, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			h.metrics.Registrations.WithLabelValues("invalid").Inc()
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUserExists):
			h.metrics.Registrations.WithLabelValues("conflict").Inc()
			response.Error(c, http.StatusConflict, response.CodeUserExists, err.Error())
		default:
			logging.FromContext(c, h.log).Error("register failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register failed")
		}
		return
	}
	h.metrics.Registrations.WithLabelValues("created").Inc()

	response.Created(c, userView(user))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	user, err := h.authService.Authenticate(c.Request.Context(), app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			h.metrics.Logins.WithLabelValues("failure").Inc()
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
			return
		}
		logging.FromContext(c, h.log).Error("login failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		return
	}

	token, err := h.authService.IssueToken(user)
	if err != nil {
		logging.FromContext(c, h.log).Error("issue token failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		return
	}
	h.metrics.Logins.WithLabelValues("success").Inc()

	response.OK(c, gin.H{
		"token": token,
		"user":  userView(user),
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		logging.FromContext(c, h.log).Error("fetch current user failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch current user failed")
		return
	}
	if user == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found")
		return
	}

	response.OK(c, userView(user))
}

func userView(user *model.User) gin.H {
	return gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	}
}
