package handlers

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"portal-service/internal/models"
	"portal-service/internal/telemetry"
	"portal-service/internal/workspace"
)

// SocialHandler serves the feed, post moderation, chat and notifications.
type SocialHandler struct {
	registry *workspace.Registry
	audit    *telemetry.AuditEmitter
}

func NewSocialHandler(registry *workspace.Registry, audit *telemetry.AuditEmitter) *SocialHandler {
	return &SocialHandler{registry: registry, audit: audit}
}

type postBody struct {
	Content string `json:"content" binding:"required"`
	Image   string `json:"image"`
}

type textBody struct {
	Content string `json:"content" binding:"required"`
}

type shareBody struct {
	Content string `json:"content"`
}

func (h *SocialHandler) Feed(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	page := pageFromQuery(c)
	posts, err := ws.Social.Feed(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, boardResponse[models.Post]{Items: posts, Page: newPageInfo(page)})
}

func (h *SocialHandler) CreatePost(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	var body postBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	post, err := ws.Social.CreatePost(c.Request.Context(), body.Content, body.Image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, post)
}

func (h *SocialHandler) DeletePost(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	postID := c.Param("id")
	if err := ws.Social.DeletePost(c.Request.Context(), postID); err != nil {
		respondError(c, err)
		return
	}
	h.audit.EmitAudit(c.Request.Context(), telemetry.LevelInfo, "Post '"+postID+"' deleted", requestIDFromContext(c), viewerIDFromContext(c))
	c.Status(nethttp.StatusNoContent)
}

func (h *SocialHandler) LikePost(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	post, err := ws.Social.LikePost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, post)
}

func (h *SocialHandler) CommentOnPost(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	var body textBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	post, err := ws.Social.CommentOnPost(c.Request.Context(), c.Param("id"), body.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, post)
}

func (h *SocialHandler) SharePost(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	var body shareBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	post, err := ws.Social.SharePost(c.Request.Context(), c.Param("id"), body.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, post)
}

func (h *SocialHandler) PendingPosts(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil || !requireModerator(c, ws) {
		return
	}
	page := pageFromQuery(c)
	posts, err := ws.Social.PendingPosts(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, boardResponse[models.Post]{Items: posts, Page: newPageInfo(page)})
}

func (h *SocialHandler) HidePost(c *gin.Context) {
	h.moderate(c, "hidden", func(ws *workspace.Workspace, postID string) error {
		return ws.Social.HidePost(c.Request.Context(), postID)
	})
}

func (h *SocialHandler) ApprovePost(c *gin.Context) {
	h.moderate(c, "approved", func(ws *workspace.Workspace, postID string) error {
		return ws.Social.ApprovePost(c.Request.Context(), postID)
	})
}

func (h *SocialHandler) moderate(c *gin.Context, outcome string, act func(*workspace.Workspace, string) error) {
	ws := workspaceFor(c, h.registry)
	if ws == nil || !requireModerator(c, ws) {
		return
	}
	postID := c.Param("id")
	if err := act(ws, postID); err != nil {
		respondError(c, err)
		return
	}
	h.audit.EmitAudit(c.Request.Context(), telemetry.LevelInfo, "Post '"+postID+"' "+outcome, requestIDFromContext(c), viewerIDFromContext(c))
	c.JSON(nethttp.StatusOK, gin.H{"id": postID, "status": outcome})
}

func (h *SocialHandler) Conversations(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	conversations, err := ws.Social.Conversations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, conversations)
}

func (h *SocialHandler) Messages(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	page := pageFromQuery(c)
	messages, err := ws.Social.Messages(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, boardResponse[models.Message]{Items: messages, Page: newPageInfo(page)})
}

func (h *SocialHandler) SendMessage(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	var body textBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	msg, err := ws.Social.SendMessage(c.Request.Context(), c.Param("id"), body.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, msg)
}

func (h *SocialHandler) Notifications(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	notifications, err := ws.Social.Notifications(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}
	c.JSON(nethttp.StatusOK, gin.H{"items": notifications, "unread": unread})
}

func (h *SocialHandler) MarkNotificationRead(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	if err := ws.Social.MarkNotificationRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}
