package handlers

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"portal-service/internal/apiclient"
	"portal-service/internal/metrics"
	"portal-service/internal/network"
	"portal-service/internal/telemetry"
	"portal-service/internal/workspace"
)

type NetworkHandler struct {
	registry *workspace.Registry
	audit    *telemetry.AuditEmitter
	events   *telemetry.EventEmitter
}

func NewNetworkHandler(registry *workspace.Registry, audit *telemetry.AuditEmitter, events *telemetry.EventEmitter) *NetworkHandler {
	return &NetworkHandler{registry: registry, audit: audit, events: events}
}

type tabResponse struct {
	Tab     string         `json:"tab"`
	Items   []network.View `json:"items"`
	HasMore bool           `json:"has_more"`
	Added   int            `json:"added,omitempty"`
	Banner  string         `json:"banner,omitempty"`
	Notice  string         `json:"notice,omitempty"`
}

type sendRequestBody struct {
	UserID string `json:"user_id" binding:"required"`
}

type actionResponse struct {
	Outcome string         `json:"outcome"`
	Status  network.Status `json:"status"`
	Notice  string         `json:"notice,omitempty"`
}

// interrupts reports errors that end the request instead of becoming the banner.
func interrupts(err error) bool {
	return errors.Is(err, apiclient.ErrSessionExpired) ||
		errors.Is(err, network.ErrClosed) ||
		errors.Is(err, context.Canceled)
}

func (h *NetworkHandler) respondTab(c *gin.Context, ws *workspace.Workspace, tab network.Tab, added int) {
	items, err := ws.Network.FilteredView(tab, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, tabResponse{
		Tab:     tab.String(),
		Items:   items,
		HasMore: ws.Network.HasMore(tab),
		Added:   added,
		Banner:  ws.Network.Banner(),
		Notice:  ws.Network.Notice(),
	})
}

// LoadTab refreshes a tab and renders it filtered by ?q=. A failed refresh still
// renders the previous list with the error as banner.
func (h *NetworkHandler) LoadTab(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	tab, err := network.ParseTab(c.Param("tab"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := ws.Network.LoadTab(c.Request.Context(), tab); err != nil && interrupts(err) {
		respondError(c, err)
		return
	}
	h.respondTab(c, ws, tab, 0)
}

// View renders a tab from local state without refetching.
func (h *NetworkHandler) View(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	tab, err := network.ParseTab(c.Param("tab"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondTab(c, ws, tab, 0)
}

func (h *NetworkHandler) NextPage(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	tab, err := network.ParseTab(c.Param("tab"))
	if err != nil {
		respondError(c, err)
		return
	}
	added, err := ws.Network.LoadNextPage(c.Request.Context(), tab)
	if err != nil && (interrupts(err) || errors.Is(err, network.ErrNotPaged)) {
		respondError(c, err)
		return
	}
	h.respondTab(c, ws, tab, added)
}

func (h *NetworkHandler) Snapshot(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	c.JSON(nethttp.StatusOK, ws.Network.Snapshot())
}

func (h *NetworkHandler) SendRequest(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	ctx := c.Request.Context()
	requestID := requestIDFromContext(c)
	viewerID := viewerIDFromContext(c)

	var body sendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.audit.EmitAudit(ctx, telemetry.LevelError, "invalid request payload", requestID, viewerID)
		metrics.IncConnectionRequest(metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.UserID == viewerID {
		metrics.IncConnectionRequest(metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "cannot send request to yourself"})
		return
	}

	outcome, err := ws.Network.SendRequest(ctx, body.UserID)
	if err != nil {
		h.audit.Failure(ctx, "connection request to '"+body.UserID+"' failed", err, requestID, viewerID)
		h.events.Emit(ctx, telemetry.ConnectionRequestSentKey, requestID, viewerID, telemetry.ConnectionPayload{
			Action: "send", TargetUserID: body.UserID, Result: metrics.StatusFailed, Error: err.Error(),
		})
		metrics.IncConnectionRequest(metrics.StatusFailed)
		respondError(c, err)
		return
	}

	resp := actionResponse{Outcome: outcome.String(), Status: ws.Network.StatusFor(body.UserID)}
	code := nethttp.StatusCreated
	result := metrics.StatusSuccess
	if outcome == network.OutcomeAlreadySent {
		code = nethttp.StatusOK
		result = metrics.StatusDuplicate
		resp.Notice = ws.Network.Notice()
	}

	h.audit.EmitAudit(ctx, telemetry.LevelInfo, "Connection request sent to '"+body.UserID+"'", requestID, viewerID)
	h.events.Emit(ctx, telemetry.ConnectionRequestSentKey, requestID, viewerID, telemetry.ConnectionPayload{
		Action: "send", TargetUserID: body.UserID, Result: result,
	})
	metrics.IncConnectionRequest(result)
	c.JSON(code, resp)
}

func (h *NetworkHandler) AcceptRequest(c *gin.Context) {
	h.handleDecision(c, "accept", "accepted", telemetry.ConnectionAcceptedKey, metrics.IncConnectionAccept,
		(*network.Reconciler).AcceptRequest)
}

func (h *NetworkHandler) DeclineRequest(c *gin.Context) {
	h.handleDecision(c, "decline", "declined", telemetry.ConnectionDeclinedKey, metrics.IncConnectionDecline,
		(*network.Reconciler).DeclineRequest)
}

func (h *NetworkHandler) handleDecision(
	c *gin.Context,
	action, done, routingKey string,
	inc func(string),
	decide func(*network.Reconciler, context.Context, string) error,
) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	ctx := c.Request.Context()
	requestID := requestIDFromContext(c)
	viewerID := viewerIDFromContext(c)
	connectionRequestID := c.Param("id")

	if err := decide(ws.Network, ctx, connectionRequestID); err != nil {
		h.audit.Failure(ctx, "failed to "+action+" connection request '"+connectionRequestID+"'", err, requestID, viewerID)
		h.events.Emit(ctx, routingKey, requestID, viewerID, telemetry.ConnectionPayload{
			Action: action, RequestID: connectionRequestID, Result: metrics.StatusFailed, Error: err.Error(),
		})
		inc(metrics.StatusFailed)
		respondError(c, err)
		return
	}

	h.audit.EmitAudit(ctx, telemetry.LevelInfo, "Connection request '"+connectionRequestID+"' "+done, requestID, viewerID)
	h.events.Emit(ctx, routingKey, requestID, viewerID, telemetry.ConnectionPayload{
		Action: action, RequestID: connectionRequestID, Result: metrics.StatusSuccess,
	})
	inc(metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, gin.H{
		"id":     connectionRequestID,
		"action": action,
		"banner": ws.Network.Banner(),
	})
}

func (h *NetworkHandler) RemoveConnection(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	ctx := c.Request.Context()
	requestID := requestIDFromContext(c)
	viewerID := viewerIDFromContext(c)
	connectionID := c.Param("id")

	if err := ws.Network.RemoveConnection(ctx, connectionID); err != nil {
		h.audit.Failure(ctx, "failed to remove connection '"+connectionID+"'", err, requestID, viewerID)
		metrics.IncConnectionRemoval(metrics.StatusFailed)
		respondError(c, err)
		return
	}

	h.audit.EmitAudit(ctx, telemetry.LevelInfo, "Connection '"+connectionID+"' removed", requestID, viewerID)
	h.events.Emit(ctx, telemetry.ConnectionRemovedKey, requestID, viewerID, telemetry.ConnectionPayload{
		Action: "remove", ConnectionID: connectionID, Result: metrics.StatusSuccess,
	})
	metrics.IncConnectionRemoval(metrics.StatusSuccess)
	c.Status(nethttp.StatusNoContent)
}

// Status returns the locally derived status, or the API's answer with ?source=remote.
func (h *NetworkHandler) Status(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	userID := c.Param("userId")
	if c.Query("source") == "remote" {
		remote, err := ws.Social.ConnectionStatus(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(nethttp.StatusOK, remote)
		return
	}
	c.JSON(nethttp.StatusOK, ws.Network.StatusFor(userID))
}
