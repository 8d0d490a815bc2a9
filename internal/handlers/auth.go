package handlers

import (
	"log"
	nethttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"portal-service/internal/middleware"
	"portal-service/internal/models"
	"portal-service/internal/services"
	"portal-service/internal/session"
	"portal-service/internal/telemetry"
	"portal-service/internal/workspace"
)

const sessionCookieMaxAge = 7 * 24 * 60 * 60

type AuthHandler struct {
	registry  *workspace.Registry
	store     session.TokenStore
	audit     *telemetry.AuditEmitter
	jwtSecret string
	serverURL string
}

func NewAuthHandler(registry *workspace.Registry, store session.TokenStore, audit *telemetry.AuditEmitter, jwtSecret, serverURL string) *AuthHandler {
	return &AuthHandler{
		registry:  registry,
		store:     store,
		audit:     audit,
		jwtSecret: jwtSecret,
		serverURL: strings.TrimRight(serverURL, "/"),
	}
}

type loginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// assetURL resolves an upload path returned by the API against the server URL.
func assetURL(serverURL, path string) string {
	if path == "" || serverURL == "" ||
		strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "data:") {
		return path
	}
	return serverURL + "/" + strings.TrimLeft(path, "/")
}

func (h *AuthHandler) present(user models.User) models.User {
	user.ProfilePicture = assetURL(h.serverURL, user.ProfilePicture)
	return user
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	res, err := h.registry.Anonymous().Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.startSession(c, res, nethttp.StatusOK, "User logged in")
}

func (h *AuthHandler) Register(c *gin.Context) {
	var body services.RegisterInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch body.Role {
	case "", models.RoleCandidate, models.RoleRecruiter:
	default:
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "role must be candidate or recruiter"})
		return
	}

	res, err := h.registry.Anonymous().Register(c.Request.Context(), body)
	if err != nil {
		respondError(c, err)
		return
	}
	h.startSession(c, res, nethttp.StatusCreated, "User registered")
}

func (h *AuthHandler) startSession(c *gin.Context, res *services.AuthResult, code int, auditText string) {
	ctx := c.Request.Context()
	viewerID := res.User.ID
	if viewerID == "" {
		id, err := middleware.ViewerID(res.Token, h.jwtSecret)
		if err != nil {
			c.JSON(nethttp.StatusBadGateway, gin.H{"error": "job portal API returned an unusable token"})
			return
		}
		viewerID = id
	}

	ws := h.registry.Get(viewerID, res.Token)
	if res.User.ID != "" {
		ws.Session.SetUser(res.User)
	}
	sessionID, err := ws.Session.Persist(ctx)
	if err != nil {
		log.Printf("warning: failed to persist session for %s: %v", viewerID, err)
	}

	h.audit.EmitAudit(ctx, telemetry.LevelInfo, auditText, requestIDFromContext(c), viewerID)
	if sessionID != "" {
		c.SetCookie(middleware.SessionCookie, sessionID, sessionCookieMaxAge, "/", "", false, true)
	}
	c.JSON(code, gin.H{"token": res.Token, "user": h.present(res.User)})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	user, err := ws.Auth.Profile(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ws.Session.SetUser(user)
	c.JSON(nethttp.StatusOK, h.present(user))
}

// Logout ends the caller's token: its workspace and every stored browser session holding it.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	viewerID := viewerIDFromContext(c)
	token := c.GetString(middleware.TokenKey)
	h.registry.Drop(token)
	if h.store != nil {
		if err := h.store.Revoke(ctx, token); err != nil {
			log.Printf("warning: failed to revoke stored sessions for %s: %v", viewerID, err)
		}
	}
	h.audit.EmitAudit(ctx, telemetry.LevelInfo, "User logged out", requestIDFromContext(c), viewerID)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	c.JSON(nethttp.StatusOK, gin.H{"redirect": "/login"})
}

// viewerUser returns the cached user, fetching the profile once when needed.
func viewerUser(c *gin.Context, ws *workspace.Workspace) (models.User, error) {
	if user, ok := ws.Session.User(); ok {
		return user, nil
	}
	user, err := ws.Auth.Profile(c.Request.Context())
	if err != nil {
		return models.User{}, err
	}
	ws.Session.SetUser(user)
	return user, nil
}

// requireModerator writes 403 and returns false unless the viewer is a recruiter or admin.
func requireModerator(c *gin.Context, ws *workspace.Workspace) bool {
	user, err := viewerUser(c, ws)
	if err != nil {
		respondError(c, err)
		return false
	}
	if !user.CanModerate() {
		c.JSON(nethttp.StatusForbidden, gin.H{"error": "recruiter or admin role required"})
		return false
	}
	return true
}
