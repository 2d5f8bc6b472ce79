package auth

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AuthHandlers обработчики аутентификации
type AuthHandlers struct {
	users           repository.UserStore
	jwtService      *JWTService
	passwordService *PasswordService
	log             *zap.Logger
	now             func() time.Time
}

// NewAuthHandlers создает новые обработчики аутентификации
func NewAuthHandlers(users repository.UserStore, jwtService *JWTService, passwordService *PasswordService, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:           users,
		jwtService:      jwtService,
		passwordService: passwordService,
		log:             log,
		now:             time.Now,
	}
}

// RegisterRequest структура запроса регистрации
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest структура запроса входа
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest структура запроса обновления токенов
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse структура ответа аутентификации
type AuthResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	User         UserInfo `json:"user"`
}

// UserInfo информация о пользователе
type UserInfo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	URLsCreated int       `json:"urlsCreated"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ErrorResponse структура ошибки
type ErrorResponse struct {
	Message string `json:"message"`
}

// Register обработчик регистрации
//
//	@Summary		Register a new user
//	@Description	Create a new user account
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RegisterRequest	true	"Registration request"
//	@Success		201		{object}	AuthResponse	"User registered successfully"
//	@Failure		400		{object}	ErrorResponse	"Invalid request data"
//	@Failure		409		{object}	ErrorResponse	"User already exists"
//	@Failure		429		{object}	ErrorResponse	"Too many requests"
//	@Router			/api/auth/register [post]
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid registration request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	// Валидация email
	req.Email = normalizeEmail(req.Email)
	if !isValidEmail(req.Email) {
		h.writeError(w, "Please provide a valid email", http.StatusBadRequest)
		return
	}

	if err := ValidatePassword(req.Password); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = req.Email[:strings.IndexByte(req.Email, '@')]
	}

	hashedPassword, err := h.passwordService.HashPassword(req.Password)
	if err != nil {
		h.log.Error("failed to hash password", zap.Error(err))
		h.writeError(w, "Server error", http.StatusInternalServerError)
		return
	}

	user := &domain.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hashedPassword,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			h.writeError(w, "User already exists", http.StatusConflict)
			return
		}
		h.log.Error("failed to create user", zap.String("email", req.Email), zap.Error(err))
		h.writeError(w, "Server error", http.StatusInternalServerError)
		return
	}

	h.log.Info("user registered successfully", zap.Int64("user_id", user.ID))
	h.respondWithTokens(w, user, http.StatusCreated)
}

// Login обработчик входа
//
//	@Summary		Login user
//	@Description	Authenticate user and receive JWT tokens
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Login request"
//	@Success		200		{object}	AuthResponse	"Login successful"
//	@Failure		400		{object}	ErrorResponse	"Invalid request data"
//	@Failure		401		{object}	ErrorResponse	"Invalid credentials"
//	@Failure		429		{object}	ErrorResponse	"Too many requests"
//	@Router			/api/auth/login [post]
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid login request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		h.writeError(w, "Please provide email and password", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			h.log.Error("failed to load user", zap.Error(err))
			h.writeError(w, "Server error", http.StatusInternalServerError)
			return
		}
		h.log.Debug("user not found for login")
		h.writeError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	// Проверяем пароль
	if err := h.passwordService.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.log.Debug("invalid password for user", zap.Int64("user_id", user.ID))
		h.writeError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	// Обновляем время последнего входа
	now := h.now().UTC()
	if err := h.users.UpdateLastLogin(r.Context(), user.ID, now); err != nil {
		h.log.Warn("failed to update last login time", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	h.log.Info("user logged in successfully", zap.Int64("user_id", user.ID))
	h.respondWithTokens(w, user, http.StatusOK)
}

// Refresh обработчик обновления токенов
//
//	@Summary		Refresh tokens
//	@Description	Exchange a refresh token for a new token pair
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RefreshRequest	true	"Refresh request"
//	@Success		200		{object}	AuthResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/api/auth/refresh [post]
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		h.writeError(w, "Not authorized", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, "User not found", http.StatusUnauthorized)
			return
		}
		h.log.Error("failed to load user", zap.Error(err))
		h.writeError(w, "Server error", http.StatusInternalServerError)
		return
	}

	h.respondWithTokens(w, user, http.StatusOK)
}

// Profile возвращает текущего пользователя
//
//	@Summary		Current user profile
//	@Tags			Authentication
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	UserInfo
//	@Failure		401	{object}	ErrorResponse
//	@Router			/api/auth/profile [get]
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, "Not authorized", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, "User not found", http.StatusUnauthorized)
			return
		}
		h.log.Error("failed to load profile", zap.Int64("user_id", userID), zap.Error(err))
		h.writeError(w, "Server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, toUserInfo(user), http.StatusOK)
}

func (h *AuthHandlers) respondWithTokens(w http.ResponseWriter, user *domain.User, statusCode int) {
	tokens, err := h.jwtService.IssueTokens(user.ID, user.Email)
	if err != nil {
		h.log.Error("failed to issue tokens", zap.Error(err))
		h.writeError(w, "Server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, AuthResponse{
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         toUserInfo(user),
	}, statusCode)
}

func toUserInfo(user *domain.User) UserInfo {
	return UserInfo{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		URLsCreated: user.URLsCreated,
		CreatedAt:   user.CreatedAt,
	}
}

// Helper methods

func (h *AuthHandlers) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *AuthHandlers) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Message: message}, statusCode)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
