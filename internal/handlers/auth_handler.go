package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/auth"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/middleware"
	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository"
)

type AuthHandler struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
}

func NewAuthHandler(userRepo repository.UserRepository, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user := &models.User{
		Email:       strings.TrimSpace(req.Email),
		DisplayName: strings.TrimSpace(req.DisplayName),
	}
	if err := user.Validate(); err != nil {
		respondError(c, err)
		return
	}

	// Hash password
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	user.PasswordHash = hashedPassword

	if err := h.userRepo.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			ErrorResponse(c, http.StatusConflict, "Email already registered")
			return
		}
		respondError(c, err)
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.WithContext(c.Request.Context()).WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusCreated, models.LoginResponse{
		Token: token,
		User:  *user,
	})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		respondError(c, err)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token: token,
		User:  *user,
	})
}

// GetMe returns the current user
func (h *AuthHandler) GetMe(c *gin.Context) {
	uid, ok := middleware.GetUserID(c)
	if !ok {
		respondError(c, apperr.ErrUnauthenticated)
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
