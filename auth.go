package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// demoUserID is the fixed identity handed out when demo mode accepts the
// configured demo token. Seeded by cmd/create-user.
const demoUserID = 1

// dummyHash is a pre-computed bcrypt hash used when a login username isn't found.
// Running bcrypt against it (instead of returning early) keeps response time
// constant, preventing timing-based username enumeration.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.DefaultCost)

// login verifies username/password and returns the user's auth token.
// POST /api/login (public — no auth required).
func (h *Handler) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	u, lookupErr := h.repo.UserByUsername(c.Request.Context(), body.Username)

	// Always run bcrypt to keep response time constant regardless of whether the
	// username was found — prevents timing-based username enumeration.
	hashToCheck := string(dummyHash)
	if lookupErr == nil {
		hashToCheck = u.Password
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(hashToCheck), []byte(body.Password))

	if lookupErr != nil || compareErr != nil {
		apiError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": u.AuthToken, "user_id": u.ID})
}

// authMiddleware validates the Bearer token and sets user_id on the context.
// In demo mode the configured demo token maps straight to the seeded demo
// user, so the mobile app can run without a login flow. After resolving the
// user it runs the ledger's day-boundary check — every authenticated request
// is the backend's app-resume event.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apiError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		var userID int
		if h.cfg.Demo.Enabled && token == h.cfg.Demo.Token {
			userID = demoUserID
		} else {
			id, err := h.repo.UserIDByToken(c.Request.Context(), token)
			if err != nil {
				apiError(c, http.StatusUnauthorized, "invalid token")
				c.Abort()
				return
			}
			userID = id
		}

		c.Set("user_id", userID)
		h.ledgers.Get(c.Request.Context(), userID).CheckDailyReset()
		c.Next()
	}
}

// registerPushToken stores the device's push token for reminder delivery.
// POST /api/notifications/register. Body: { "push_token": "ExponentPushToken[...]" }.
func (h *Handler) registerPushToken(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body struct {
		PushToken string `json:"push_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PushToken == "" {
		apiError(c, http.StatusBadRequest, "push_token is required")
		return
	}

	if err := h.repo.SetPushToken(c.Request.Context(), userID, body.PushToken); err != nil {
		h.log.Errorw("failed to store push token", "user_id", userID, "error", err)
		apiError(c, http.StatusInternalServerError, "failed to register push token")
		return
	}

	c.Status(http.StatusNoContent)
}
