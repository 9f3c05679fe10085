package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"example.com/sketch-mvp/internal/auth"
	"example.com/sketch-mvp/internal/logging"
	"example.com/sketch-mvp/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt limit
	MaxNameLength     = 24
)

type UserRepo interface {
	Create(ctx context.Context, u store.User) error
	GetByEmail(ctx context.Context, email string) (store.User, error)
	GetByID(ctx context.Context, id string) (store.User, error)
}

type StatsRepo interface {
	InitForUser(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (store.PlayerStats, error)
}

type TokenIssuer interface {
	Sign(userID, displayName string, ttl time.Duration) (string, error)
	SignGuest(userID, displayName string, ttl time.Duration) (string, error)
}

// AuthHandler serves accounts and guest tokens. With nil Users only guests
// can sign in.
type AuthHandler struct {
	Users    UserRepo
	Stats    StatsRepo
	Tokens   TokenIssuer
	TokenTTL time.Duration
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GuestRequest struct {
	DisplayName string `json:"displayName"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type MeResponse struct {
	ID          string             `json:"id"`
	DisplayName string             `json:"displayName"`
	Guest       bool               `json:"guest"`
	Email       string             `json:"email,omitempty"`
	CreatedAt   *time.Time         `json:"createdAt,omitempty"`
	Stats       *store.PlayerStats `json:"stats,omitempty"`
}

func (h *AuthHandler) accountsEnabled(c *gin.Context) bool {
	if h.Users == nil {
		writeError(c, http.StatusServiceUnavailable, "accounts_disabled", "accounts are not configured, use a guest token")
		return false
	}
	return true
}

func cleanName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	return name, name != "" && utf8.RuneCountInString(name) <= MaxNameLength
}

func (h *AuthHandler) Register(c *gin.Context) {
	if !h.accountsEnabled(c) {
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	name, ok := cleanName(req.DisplayName)

	switch {
	case req.Email == "" || req.Password == "" || req.DisplayName == "":
		writeError(c, http.StatusBadRequest, "bad_request", "email, password and displayName are required")
		return
	case !ok:
		writeError(c, http.StatusBadRequest, "bad_request", "displayName must be 1 to 24 characters")
		return
	case len(req.Password) < MinPasswordLength || len(req.Password) > MaxPasswordLength:
		writeError(c, http.StatusBadRequest, "weak_password", "password must be 6 to 72 bytes")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal", "failed to hash password")
		return
	}

	ctx := c.Request.Context()
	u := store.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		DisplayName:  name,
	}
	if err := h.Users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(c, http.StatusConflict, "email_taken", "email already exists")
			return
		}
		logging.FromContext(ctx).Errorw("create user failed", "error", err)
		writeError(c, http.StatusInternalServerError, "internal", "failed to create user")
		return
	}

	// пустая статистика
	if h.Stats != nil {
		if err := h.Stats.InitForUser(ctx, u.ID); err != nil {
			logging.FromContext(ctx).Warnw("init stats failed", "user", u.ID, "error", err)
		}
	}

	h.respondToken(c, http.StatusCreated, u.ID, u.DisplayName, false)
}

func (h *AuthHandler) Login(c *gin.Context) {
	if !h.accountsEnabled(c) {
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(c, http.StatusBadRequest, "bad_request", "email and password are required")
		return
	}

	u, err := h.Users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			logging.FromContext(c.Request.Context()).Errorw("user lookup failed", "error", err)
		}
		writeError(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		writeError(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	h.respondToken(c, http.StatusOK, u.ID, u.DisplayName, false)
}

// Guest issues a token for a one-off display name.
func (h *AuthHandler) Guest(c *gin.Context) {
	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	name, ok := cleanName(req.DisplayName)
	if !ok {
		writeError(c, http.StatusBadRequest, "bad_request", "displayName is required and at most 24 characters")
		return
	}
	h.respondToken(c, http.StatusOK, "guest-"+uuid.NewString(), name, true)
}

func (h *AuthHandler) respondToken(c *gin.Context, status int, userID, name string, guest bool) {
	sign := h.Tokens.Sign
	if guest {
		sign = h.Tokens.SignGuest
	}
	token, err := sign(userID, name, h.TokenTTL)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	c.JSON(status, LoginResponse{AccessToken: token, UserID: userID, DisplayName: name})
}

func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}
	if claims.Guest || h.Users == nil {
		c.JSON(http.StatusOK, MeResponse{ID: claims.CurrentUserID(), DisplayName: claims.CurrentDisplayName(), Guest: claims.Guest})
		return
	}

	ctx := c.Request.Context()
	u, err := h.Users.GetByID(ctx, claims.CurrentUserID())
	if err != nil {
		writeError(c, http.StatusUnauthorized, "unauthorized", "user not found")
		return
	}
	resp := MeResponse{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email, CreatedAt: &u.CreatedAt}

	if h.Stats != nil {
		st, err := h.Stats.Get(ctx, u.ID)
		if err != nil {
			logging.FromContext(ctx).Errorw("load stats failed", "user", u.ID, "error", err)
			writeError(c, http.StatusInternalServerError, "internal", "failed to load stats")
			return
		}
		resp.Stats = &st
	}
	c.JSON(http.StatusOK, resp)
}

var _ TokenIssuer = (*auth.Service)(nil)
