package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobportal/internal/api/middleware"
	"jobportal/internal/auth"
	"jobportal/internal/config"
	"jobportal/internal/database"
	"jobportal/internal/guard"
	"jobportal/internal/notify"
)

// 企业账号注册时自动创建的企业资料默认值。
const (
	defaultCompanyDescription = "Company description"
	defaultCompanyIndustry    = "Technology"
)

// AuthHandler 处理注册、登录、刷新与退出。
type AuthHandler struct {
	db          *gorm.DB
	authService *auth.AuthService
	limiter     *loginLimiter
	sessions    *refreshSessions
	notifier    *notify.Notifier
	logger      *slog.Logger
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, redisClient redis.UniversalClient, notifier *notify.Notifier, logger *slog.Logger, cfg config.AuthConfig, cookieDomain string) *AuthHandler {
	return &AuthHandler{
		db:          db,
		authService: authService,
		limiter:     newLoginLimiter(redisClient, cfg, logger),
		sessions:    newRefreshSessions(redisClient, authService.RefreshTokenTTL(), cookieDomain),
		notifier:    notifier,
		logger:      logger,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	UserType string `json:"user_type" binding:"required,oneof=applicant company"`
	FullName string `json:"full_name" binding:"required,max=120"`
}

func (r *registerRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
}

var registerMessages = fieldMessages{
	"email.required":     "Email is required",
	"password.required":  "Password is required",
	"password.min":       "Password must be at least 6 characters",
	"full_name.required": "Full name is required",
	"user_type.oneof":    "Please select whether you are a job seeker or an employer",
}

// sessionUser 是返回给客户端的会话用户。
type sessionUser struct {
	ID                 uint              `json:"id"`
	Email              string            `json:"email"`
	UserType           string            `json:"user_type"`
	MustChangePassword bool              `json:"must_change_password"`
	Dashboard          string            `json:"dashboard"`
	Profile            *database.Profile `json:"profile"`
}

func newSessionUser(user database.User) sessionUser {
	out := sessionUser{
		ID:                 user.ID,
		Email:              user.Email,
		MustChangePassword: user.MustChangePassword,
		Profile:            user.Profile,
	}
	if user.Profile != nil {
		out.UserType = user.Profile.UserType
		out.Dashboard = guard.DashboardPath(user.Profile.UserType)
	}
	return out
}

type tokenResponse struct {
	AccessToken        string      `json:"access_token"`
	TokenType          string      `json:"token_type"`
	ExpiresIn          int         `json:"expires_in"`
	MustChangePassword bool        `json:"must_change_password"`
	User               sessionUser `json:"user"`
}

// Register 创建账号、个人资料，企业账号同时创建企业资料，并发送欢迎通知。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req, registerMessages) {
		return
	}
	email := req.Email

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user := database.User{Email: email, PasswordHash: hashed}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile := database.Profile{
			UserID:   user.ID,
			FullName: req.FullName,
			UserType: req.UserType,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		user.Profile = &profile

		if req.UserType == database.UserTypeCompany {
			company := database.Company{
				UserID:      user.ID,
				Name:        profile.FullName,
				Description: defaultCompanyDescription,
				Industry:    defaultCompanyIndustry,
			}
			if err := tx.Create(&company).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Info("register conflict: email already registered")
			Conflict(c, "email already registered")
			return
		}
		logger.Error("create account failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.notifier.Notify(ctx, notify.Welcome(user.ID, req.UserType), middleware.GetCorrelationID(c)); err != nil {
		logger.Warn("welcome notification failed", slog.Any("error", err))
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)), slog.String("user_type", req.UserType))
	h.replyWithTokenPair(c, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (r *loginRequest) normalize() { r.Email = normalizeEmail(r.Email) }

// Login 校验口令并返回 Token。
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	var req loginRequest
	if !bindJSON(c, &req, nil) {
		return
	}
	email := req.Email

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	switch h.limiter.check(ctx, ip, email) {
	case loginRateLimited:
		TooManyRequests(c, "rate limit exceeded")
		return
	case loginLocked:
		TooManyRequests(c, "account temporarily locked")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Preload("Profile").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: user not found")
			h.limiter.recordFailure(ctx, email)
			Unauthorized(c)
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if !h.authService.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		h.limiter.recordFailure(ctx, email)
		Unauthorized(c)
		return
	}
	if user.Profile == nil {
		logger.Warn("login failed: profile missing", slog.Uint64("user_id", uint64(user.ID)))
		Unauthorized(c)
		return
	}

	h.limiter.reset(ctx, email)

	h.replyWithTokenPair(c, http.StatusOK, user)
}

// Refresh 用刷新令牌换新的令牌对，旧令牌随即作废。
func (h *AuthHandler) Refresh(c *gin.Context) {
	logger := h.loggerFromContext(c)
	claims, ok := h.refreshClaims(c, logger)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	fresh, err := h.sessions.consume(ctx, claims)
	if err != nil {
		logger.Error("refresh token consume failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if !fresh {
		logger.Info("refresh token reused", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Preload("Profile").First(&user, claims.UserID).Error; err != nil || user.Profile == nil {
		logger.Info("refresh user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}
	h.replyWithTokenPair(c, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// ChangePassword 校验当前密码并更新为新密码，同时清除强制改密标记。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req, nil) {
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		ValidationFailed(c, map[string]string{"confirm_password": "password confirmation does not match"})
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	var user database.User
	if err := h.db.WithContext(ctx).Preload("Profile").First(&user, userID).Error; err != nil {
		logger.Info("change password: user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	if !h.authService.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		logger.Info("change password: current password mismatch")
		Unauthorized(c)
		return
	}

	if strings.TrimSpace(req.NewPassword) == strings.TrimSpace(req.CurrentPassword) {
		ValidationFailed(c, map[string]string{"new_password": "new password must be different from current password"})
		return
	}

	hashed, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("change password: hash failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":        hashed,
		"must_change_password": false,
	}).Error; err != nil {
		logger.Error("change password: update failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	user.MustChangePassword = false

	// 改密后旧的刷新令牌不能再用。
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		if claims, err := h.authService.ValidateRefreshToken(token); err == nil {
			if err := h.sessions.revoke(ctx, claims); err != nil {
				logger.Error("change password: revoke refresh failed", slog.Any("error", err))
				Internal(c, "internal error")
				return
			}
		}
	}

	h.replyWithTokenPair(c, http.StatusOK, user)
}

// Session 返回当前会话用户；没有个人资料的账号视为未登录。
func (h *AuthHandler) Session(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	err := h.db.WithContext(c.Request.Context()).Preload("Profile").First(&user, userID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.loggerFromContext(c).Error("load session user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if err != nil || user.Profile == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": guard.SignInPath})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": newSessionUser(user)})
}

// Dashboard 返回当前角色对应的仪表盘路径。
func (h *AuthHandler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"redirect": guard.DashboardPath(userTypeFromContext(c))})
}

// Logout 吊销刷新令牌并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	logger := h.loggerFromContext(c)
	claims, ok := h.refreshClaims(c, logger)
	if !ok {
		return
	}
	if err := h.sessions.revoke(c.Request.Context(), claims); err != nil {
		logger.Error("logout revoke token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.sessions.clearCookie(c)
	c.Status(http.StatusOK)
}

// refreshClaims 读取并校验请求携带的刷新令牌，失败时已写出 401。
func (h *AuthHandler) refreshClaims(c *gin.Context, logger *slog.Logger) (*auth.TokenClaims, bool) {
	token := h.sessions.tokenFrom(c)
	if token == "" {
		Unauthorized(c)
		return nil, false
	}
	claims, err := h.authService.ValidateRefreshToken(token)
	if err != nil {
		logger.Info("refresh token rejected", slog.Any("error", err))
		Unauthorized(c)
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) replyWithTokenPair(c *gin.Context, status int, user database.User) {
	identity := auth.Identity{UserID: user.ID, MustChangePassword: user.MustChangePassword}
	if user.Profile != nil {
		identity.UserType = user.Profile.UserType
	}
	tokenPair, err := h.authService.GenerateTokenPair(identity)
	if err != nil {
		h.loggerFromContext(c).Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.sessions.setCookie(c, tokenPair.RefreshToken)
	c.JSON(status, tokenResponse{
		AccessToken:        tokenPair.AccessToken,
		TokenType:          "Bearer",
		ExpiresIn:          int(h.authService.AccessTokenTTL().Seconds()),
		MustChangePassword: user.MustChangePassword,
		User:               newSessionUser(user),
	})
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	return loggerFrom(c, h.logger)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
