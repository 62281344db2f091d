package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mireska/ashfall/server/cache"
	"github.com/mireska/ashfall/server/config"
	mw "github.com/mireska/ashfall/server/middleware"
	"github.com/mireska/ashfall/server/model"
)

const bcryptCost = 12

// cacheTimeout bounds session cache round trips inside a request.
const cacheTimeout = 2 * time.Second

var (
	errNameTaken     = errors.New("username taken")
	errWrongPassword = errors.New("wrong password")
	errBanned        = errors.New("account banned")
)

// AuthHandler owns the login endpoints. There is no separate registration
// step for a survivor: the first login with an unclaimed name creates the
// account.
type AuthHandler struct {
	db    *gorm.DB
	cache cache.Cache
	sec   config.SecurityConfig
}

func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// sessionKey names the cache entry backing one issued token. The Auth
// middleware and the WS upgrade check the same key; deleting it revokes the
// token before its JWT expiry.
func sessionKey(token string) string { return "session:" + token }

func bearerToken(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

// Login handles POST /api/auth/login. A known username must present the
// matching password and not be banned; an unknown one registers on the spot.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, created, err := h.findOrRegister(req.Username, req.Password)
	switch {
	case errors.Is(err, errNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		return
	case errors.Is(err, errWrongPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	case errors.Is(err, errBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	token, err := h.openSession(c, acc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// Best-effort bookkeeping; a failed update must not block the login.
	_ = h.db.Model(acc).Updates(map[string]interface{}{
		"last_login_at": time.Now(),
		"last_login_ip": c.ClientIP(),
	})

	var chars int64
	h.db.Model(&model.Character{}).Where("account_id = ?", acc.ID).Count(&chars)

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": acc.ID,
		"created":    created,
		"char_count": chars,
	})
}

// findOrRegister resolves the account behind a login attempt, creating it
// when the username is unclaimed. The bool result reports creation.
func (h *AuthHandler) findOrRegister(username, password string) (*model.Account, bool, error) {
	var acc model.Account
	err := h.db.Where("username = ?", username).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if hashErr != nil {
			return nil, false, hashErr
		}
		acc = model.Account{
			Username:     username,
			PasswordHash: string(hash),
			Status:       model.AccountActive,
		}
		if createErr := h.db.Create(&acc).Error; createErr != nil {
			// Two first logins racing on one name: the loser hits the
			// unique index.
			if isUniqueViolation(createErr) {
				return nil, false, errNameTaken
			}
			return nil, false, createErr
		}
		return &acc, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, false, errWrongPassword
	}
	if acc.Status == model.AccountBanned {
		return nil, false, errBanned
	}
	return &acc, false, nil
}

// openSession issues a JWT and records it in the session cache.
func (h *AuthHandler) openSession(c *gin.Context, accountID int64) (string, error) {
	token, err := mw.GenerateToken(accountID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), cacheTimeout)
	defer cancel()
	_ = h.cache.Set(ctx, sessionKey(token), strconv.FormatInt(accountID, 10), h.sec.JWTTTLH)
	return token, nil
}

// dropSession revokes one token.
func (h *AuthHandler) dropSession(c *gin.Context, token string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), cacheTimeout)
	defer cancel()
	_ = h.cache.Del(ctx, sessionKey(token))
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	h.dropSession(c, token)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh: rotates the caller's session,
// revoking the presented token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	h.dropSession(c, bearerToken(c))
	token, err := h.openSession(c, accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// isUniqueViolation detects duplicate-key errors across the supported
// database drivers, which do not share an error type.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
